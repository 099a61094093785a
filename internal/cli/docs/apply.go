package docs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyhub/internal/cli"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

var applyCmd = &cobra.Command{
	Use:   "apply <document> <file>",
	Short: "Overwrite a document",
	Long: "Replace a stored document with the contents of file. Pass --revision to refuse\n" +
		"the write if someone changed the document since that revision was pulled.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.RequireToken(); err != nil {
			return err
		}
		name, err := parseName(args[0])
		if err != nil {
			return err
		}

		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		if !json.Valid(content) {
			return fmt.Errorf("%s is not valid JSON", args[1])
		}

		revision, _ := cmd.Flags().GetString("revision")

		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		newRev, err := cli.NewClient().Replace(ctx, name, content, revision)
		if errors.Is(err, models.ErrRevisionConflict) {
			return fmt.Errorf("%s changed on the server since revision %s; pull it again and merge", name, revision)
		}
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}

		fmt.Printf("✓ Applied %s\n", name.FileName())
		if newRev != "" {
			fmt.Printf("  Revision: %s\n", newRev)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().String("revision", "", "Expected current revision")
	DocsCmd.AddCommand(applyCmd)
}
