package auth

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"storyhub/internal/cli"
	"storyhub/pkg/utils"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to StoryHub",
	Long:  "Authenticate with your email or display name and save the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		loginID, _ := cmd.Flags().GetString("login")

		if loginID == "" {
			fmt.Print("Email or name: ")
			fmt.Scanln(&loginID)
		}

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		reply, err := cli.NewClient().Login(ctx, loginID, string(password))
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if reply.User == nil || reply.Token == "" {
			return fmt.Errorf("login failed: server returned no session")
		}

		viper.Set("user.name", reply.User.Name)
		viper.Set("user.id", reply.User.ID)
		viper.Set("user.role", string(reply.User.Role))
		viper.Set("user.token", reply.Token)
		if err := cli.SaveConfig(); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		fmt.Println("✓ Login successful!")
		fmt.Printf("  Welcome back, %s (%s)!\n", reply.User.Name, reply.User.Role)
		fmt.Printf("  Token saved to: %s\n", cli.ConfigFile())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set("user.token", "")
		if err := cli.SaveConfig(); err != nil {
			return err
		}
		fmt.Println("✓ Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("login", "", "Email or display name")
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
}
