package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storyhub/internal/cli"
	"storyhub/internal/cli/auth"
	"storyhub/internal/cli/catalog"
	"storyhub/internal/cli/config"
	"storyhub/internal/cli/docs"
)

var rootCmd = &cobra.Command{
	Use:           "storyctl",
	Short:         "StoryHub operator CLI",
	Long:          "Browse the StoryHub catalog and manage its documents from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func initConfig() error {
	viper.SetConfigFile(cli.ConfigFile())
	viper.SetDefault("server.url", cli.DefaultServerURL)
	viper.SetDefault("catalog.sensitive_tags", []string{"NSFW", "18+"})
	viper.SetEnvPrefix("STORYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read %s: %w", cli.ConfigFile(), err)
		}
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server URL (default from config, then "+cli.DefaultServerURL+")")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(catalog.CatalogCmd)
	rootCmd.AddCommand(config.ConfigCmd)
	rootCmd.AddCommand(docs.DocsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
