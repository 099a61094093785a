package docs

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyhub/internal/cli"
	"storyhub/pkg/utils"
)

var pullCmd = &cobra.Command{
	Use:   "pull <document>",
	Short: "Download a document",
	Long:  "Print a stored document (stories, genres, guide, ...) or save it with --out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := parseName(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		doc, err := cli.NewClient().Read(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to pull %s: %w", name, err)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			fmt.Println(string(doc.Content))
		} else if err := os.WriteFile(out, doc.Content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		} else {
			fmt.Fprintf(os.Stderr, "✓ Saved %s to %s\n", name.FileName(), out)
		}
		if doc.Revision != "" {
			fmt.Fprintf(os.Stderr, "  Revision: %s\n", doc.Revision)
		}
		return nil
	},
}

func init() {
	pullCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	DocsCmd.AddCommand(pullCmd)
}
