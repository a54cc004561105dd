package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewUsersCmd creates the users command group (staff only)
func NewUsersCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"members"},
		Short:   "Manage library members (staff only)",
	}

	var search, userType, status string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireStaff(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Users.List(cmd.Context(), library.ListParams{
				Search:  search,
				Filters: map[string]string{"user_type": userType, "status": status},
			})
			if err != nil {
				return err
			}
			printUsers(env, page.Results)
			return nil
		},
	}
	ls.Flags().StringVarP(&search, "search", "s", "", "Match username, name, email or card number")
	ls.Flags().StringVar(&userType, "type", "", "Filter by type (student, faculty, staff, external)")
	ls.Flags().StringVar(&status, "status", "", "Filter by status (active, inactive, suspended)")

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a member with their loans and reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			return runUsersShow(cmd.Context(), env, id)
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete user %d without --yes", id)
			}
			if _, err := env.requireStaff(cmd.Context()); err != nil {
				return err
			}
			if err := env.Services.Users.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}
			fmt.Fprintf(env.Out, "✓ User %d deleted\n", id)
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")

	cmd.AddCommand(ls, show, del)
	return cmd
}

func runUsersShow(ctx context.Context, env *Env, id int) error {
	if _, err := env.requireStaff(ctx); err != nil {
		return err
	}

	user, err := env.Services.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	printUser(env, user)

	loans, err := env.Services.Users.Transactions(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "\nLoans:")
	printLoans(env, loans.Results)

	reservations, err := env.Services.Users.Reservations(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "\nReservations:")
	printReservations(env, reservations.Results)

	return nil
}

func printUsers(env *Env, users []library.User) {
	if len(users) == 0 {
		fmt.Fprintln(env.Out, "No users found.")
		return
	}

	w := env.table()
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tTYPE\tSTATUS\tLOANS")
	fmt.Fprintln(w, "──\t────────\t────\t────\t──────\t─────")

	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\n",
			u.ID,
			u.Username,
			u.DisplayName(),
			library.UserTypeBadge(u.UserType).Text,
			orDash(u.Status),
			u.BooksIssuedCount,
			u.MaxBooksAllowed,
		)
	}

	w.Flush()
}
