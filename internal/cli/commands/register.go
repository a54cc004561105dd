package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(env *Env) *cobra.Command {
	var in library.UserInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new library account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), env, in)
		},
	}

	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.UserType, "type", "student", "Member type (student, faculty, external)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (will prompt if not provided)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(ctx context.Context, env *Env, in library.UserInput) error {
	if in.Password == "" {
		password, err := env.ReadPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := env.ReadPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		in.Password = password
	}
	in.PasswordConfirm = in.Password

	user, err := env.Services.Auth.Register(ctx, in)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(env.Out, "✓ Account %s created\n", user.Username)
	if card := user.CardNumber(); card != "" {
		fmt.Fprintf(env.Out, "  Library card: %s\n", card)
	}
	fmt.Fprintln(env.Out, "\nSign in with: shelf login -u", user.Username)

	return nil
}
