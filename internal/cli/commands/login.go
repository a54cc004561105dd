package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/cli/client"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewLoginCmd creates the login command
func NewLoginCmd(env *Env) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), env, username, password)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (or set SHELF_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SHELF_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, env *Env, username, password string) error {
	// Check for environment variables (useful for scripts)
	if username == "" {
		username = os.Getenv("SHELF_USERNAME")
	}
	if password == "" {
		password = os.Getenv("SHELF_PASSWORD")
	}

	if username == "" {
		return fmt.Errorf("username is required (use --username flag or SHELF_USERNAME env var)")
	}

	if password == "" {
		p, err := env.ReadPassword("Password: ")
		if err != nil {
			return err
		}
		password = p
	}

	fmt.Fprintf(env.Out, "Logging in to %s as %s...\n", env.Config.APIURL, username)

	if err := env.Session.Login(ctx, username, password); err != nil {
		var authErr *client.AuthenticationError
		if errors.As(err, &authErr) {
			return fmt.Errorf("login failed: invalid username or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	user := env.Session.User()
	fmt.Fprintln(env.Out, "✓ Login successful!")
	fmt.Fprintf(env.Out, "  User: %s (%s)\n", user.DisplayName(), user.Username)
	fmt.Fprintf(env.Out, "  Type: %s\n", library.UserTypeBadge(user.UserType).Text)
	if user.Staff() {
		fmt.Fprintln(env.Out, "  Role: Staff")
	}

	return nil
}
