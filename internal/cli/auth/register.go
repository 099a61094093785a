package auth

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"storyhub/internal/cli"
	"storyhub/pkg/models"
	"storyhub/pkg/utils"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account",
	Long:  "Create a StoryHub account. Use --translator to request upload rights.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		translator, _ := cmd.Flags().GetBool("translator")

		if name == "" {
			fmt.Print("Display name: ")
			fmt.Scanln(&name)
		}
		if email == "" {
			fmt.Print("Email: ")
			fmt.Scanln(&email)
		}

		fmt.Print("Password: ")
		password, _ := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()

		fmt.Print("Confirm password: ")
		confirm, _ := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()

		if string(password) != string(confirm) {
			return fmt.Errorf("passwords do not match")
		}

		req := models.SignupRequest{
			Name:         name,
			Email:        email,
			Password:     string(password),
			IsTranslator: translator,
		}
		if err := utils.ValidateStruct(req); err != nil {
			return err
		}

		ctx, cancel := utils.WithLongTimeout(cmd.Context())
		defer cancel()

		reply, err := cli.NewClient().Signup(ctx, req)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		if reply.User != nil && reply.Token != "" {
			viper.Set("user.name", reply.User.Name)
			viper.Set("user.id", reply.User.ID)
			viper.Set("user.role", string(reply.User.Role))
			viper.Set("user.token", reply.Token)
			if err := cli.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
		}

		fmt.Println("✓ Registration successful!")
		fmt.Printf("  Signed in as %s\n", name)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("name", "", "Display name")
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().Bool("translator", false, "Register as a translator")
	AuthCmd.AddCommand(registerCmd)
}
