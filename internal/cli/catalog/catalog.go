package catalog

import "github.com/spf13/cobra"

var CatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the story catalog",
	Long:  "List, search and rank stories the way the site shows them",
}
