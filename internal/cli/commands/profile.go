package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewProfileCmd creates the profile command
func NewProfileCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := env.requireUser(cmd.Context())
			if err != nil {
				return err
			}
			printUser(env, user)
			return nil
		},
	}

	cmd.AddCommand(newProfileUpdateCmd(env))

	return cmd
}

func newProfileUpdateCmd(env *Env) *cobra.Command {
	var in library.UserInput

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your name, email, phone or address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileUpdate(cmd.Context(), env, in)
		},
	}

	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.Address, "address", "", "Postal address")

	return cmd
}

func runProfileUpdate(ctx context.Context, env *Env, in library.UserInput) error {
	if in == (library.UserInput{}) {
		return fmt.Errorf("nothing to update (use --first-name, --last-name, --email, --phone or --address)")
	}

	if _, err := env.requireUser(ctx); err != nil {
		return err
	}

	user, err := env.Services.Auth.UpdateProfile(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintln(env.Out, "✓ Profile updated")
	printUser(env, user)
	return nil
}

func printUser(env *Env, u *library.User) {
	fmt.Fprintf(env.Out, "ID:          %d\n", u.ID)
	fmt.Fprintf(env.Out, "Name:        %s\n", u.DisplayName())
	fmt.Fprintf(env.Out, "Username:    %s\n", u.Username)
	fmt.Fprintf(env.Out, "Email:       %s\n", orDash(u.Email))
	fmt.Fprintf(env.Out, "Type:        %s\n", library.UserTypeBadge(u.UserType).Text)
	fmt.Fprintf(env.Out, "Status:      %s\n", orDash(u.Status))
	fmt.Fprintf(env.Out, "Card:        %s\n", orDash(u.CardNumber()))
	fmt.Fprintf(env.Out, "Phone:       %s\n", orDash(deref(u.PhoneNumber)))
	fmt.Fprintf(env.Out, "Loans:       %d of %d\n", u.BooksIssuedCount, u.MaxBooksAllowed)
	fmt.Fprintf(env.Out, "Joined:      %s\n", library.FormatDate(u.MembershipStartDate))
}
