package docs

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyhub/pkg/models"
)

var DocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Read and overwrite stored documents",
	Long: "Download a catalog document or upload a replacement. Used to apply the fallback\n" +
		"stories document returned by a publish whose metadata write failed.",
}

func parseName(arg string) (models.DocumentName, error) {
	name, ok := models.ParseDocumentName(strings.TrimSuffix(arg, ".json"))
	if !ok {
		known := make([]string, len(models.Documents))
		for i, d := range models.Documents {
			known[i] = string(d)
		}
		return "", fmt.Errorf("unknown document %q (expected one of %s)", arg, strings.Join(known, ", "))
	}
	return name, nil
}
