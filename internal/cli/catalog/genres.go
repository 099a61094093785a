package catalog

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyhub/internal/cli"
	"storyhub/internal/core"
	"storyhub/pkg/utils"
)

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		catalog := core.NewCatalog(cli.NewClient())
		defer catalog.Teardown()
		if err := catalog.Load(ctx); err != nil {
			fmt.Printf("warning: %v\n", err)
		}
		for _, g := range catalog.Genres() {
			fmt.Println(g)
		}
		return nil
	},
}

func init() {
	CatalogCmd.AddCommand(genresCmd)
}
