package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"storyhub/internal/cli"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the StoryHub CLI configuration and session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			settings := viper.AllSettings()
			if user, ok := settings["user"].(map[string]interface{}); ok {
				if token, ok := user["token"].(string); ok && token != "" {
					user["token"] = maskToken(token)
				}
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(settings)
		}

		serverURL := viper.GetString("server.url")
		if serverURL == "" {
			serverURL = cli.DefaultServerURL
		}

		fmt.Println("StoryHub Configuration:")
		fmt.Println("")
		fmt.Printf("Server:\n")
		fmt.Printf("  URL: %s\n", serverURL)
		fmt.Printf("  Config file: %s\n", cli.ConfigFile())
		fmt.Println("")

		name := viper.GetString("user.name")
		token := viper.GetString("user.token")

		if name != "" {
			fmt.Printf("User:\n")
			fmt.Printf("  Name: %s\n", name)
			fmt.Printf("  Role: %s\n", viper.GetString("user.role"))
			if token != "" {
				fmt.Printf("  Token: %s\n", maskToken(token))
				fmt.Printf("  Status: ✓ Logged in\n")
			} else {
				fmt.Printf("  Status: ✗ Not logged in\n")
			}
		} else {
			fmt.Printf("User: Not logged in\n")
			fmt.Printf("  Run 'storyctl auth login' to authenticate\n")
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value, e.g. storyctl config set server.url https://stories.example.com",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if err := cli.SaveConfig(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("✓ %s = %s\n", args[0], args[1])
		return nil
	},
}

func maskToken(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}

func init() {
	showCmd.Flags().Bool("yaml", false, "Print every setting as YAML")
	ConfigCmd.AddCommand(showCmd)
	ConfigCmd.AddCommand(setCmd)
}
