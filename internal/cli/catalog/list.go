package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storyhub/internal/cli"
	"storyhub/internal/core"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible stories",
	Long:  "List stories as the home page shows them. Hidden stories are never listed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		genre, _ := cmd.Flags().GetString("genre")
		nsfw, _ := cmd.Flags().GetBool("nsfw")
		rank, _ := cmd.Flags().GetBool("rank")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		catalog := core.NewCatalog(cli.NewClient())
		defer catalog.Teardown()
		if err := catalog.Load(ctx); err != nil {
			// partial loads still leave the stories we could read
			fmt.Printf("warning: %v\n", err)
		}

		projector := core.NewProjector(models.NewTaxonomy(viper.GetStringSlice("catalog.sensitive_tags")), time.Now)
		snap := catalog.Snapshot()
		var cards []models.StoryCard
		if rank {
			cards = projector.Cards(core.Rank(projector.Filter(snap.Stories, core.Query{Search: search, Genre: genre, ShowNSFW: nsfw})))
		} else {
			cards = projector.Home(snap, core.Query{Search: search, Genre: genre, ShowNSFW: nsfw}).Stories
		}
		if limit > 0 && len(cards) > limit {
			cards = cards[:limit]
		}

		if len(cards) == 0 {
			fmt.Println("No stories found.")
			return nil
		}

		fmt.Printf("\nStories (%d):\n\n", len(cards))
		for i, c := range cards {
			marker := ""
			if c.Sensitive {
				marker = " [18+]"
			}
			fmt.Printf("%d. %s%s  (%s)\n", i+1, c.Title, marker, c.ID)
			if c.Translator != "" {
				fmt.Printf("   Translator: %s\n", c.Translator)
			}
			fmt.Printf("   Genres: %s\n", strings.Join(c.Genres, ", "))
			fmt.Printf("   Status: %s  Chapters: %d  Views: %d  Updated: %s\n",
				c.Status, len(c.Chapters), c.Stats.Views, c.UpdatedLabel)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("search", "q", "", "Match title or genre")
	listCmd.Flags().StringP("genre", "g", "", "Only this genre")
	listCmd.Flags().Bool("nsfw", false, "Include sensitive stories")
	listCmd.Flags().Bool("rank", false, "Order by views")
	listCmd.Flags().IntP("limit", "n", 20, "Maximum number of stories")
	CatalogCmd.AddCommand(listCmd)
}
