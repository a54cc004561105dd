package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/cli/picker"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewReserveCmd creates the reserve command
func NewReserveCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <book-id | search>",
		Short: "Reserve a book",
		Long: `Reserve a book by ID, or by a search query.

When the query matches several books you are asked to pick one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReserve(cmd.Context(), env, args[0])
		},
	}
}

func runReserve(ctx context.Context, env *Env, target string) error {
	if _, err := env.requireUser(ctx); err != nil {
		return err
	}

	bookID, err := strconv.Atoi(target)
	if err != nil {
		page, err := env.Services.Books.Search(ctx, target)
		if err != nil {
			return err
		}
		book, err := picker.PickBook(page.Results, env.Select)
		if errors.Is(err, picker.ErrNoMatches) {
			return fmt.Errorf("no books match %q", target)
		}
		if err != nil {
			return err
		}
		bookID = book.ID
	}

	res, err := env.Services.Reservations.Create(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to reserve book: %w", err)
	}

	fmt.Fprintf(env.Out, "✓ Reserved %q (reservation %d)\n", res.BookTitle, res.ID)
	fmt.Fprintf(env.Out, "  Held until: %s\n", library.FormatDate(res.ExpiryDate))
	return nil
}

// NewReservationsCmd creates the reservations command group
func NewReservationsCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"holds"},
		Short:   "List and cancel reservations",
	}

	var status string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List reservations (members see their own)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Reservations.List(cmd.Context(), library.ListParams{
				Ordering: "-reservation_date",
				Filters:  map[string]string{"status": status},
			})
			if err != nil {
				return err
			}
			printReservations(env, page.Results)
			return nil
		},
	}
	ls.Flags().StringVar(&status, "status", "", "Filter by status (pending, fulfilled, cancelled, expired)")

	active := &cobra.Command{
		Use:   "active",
		Short: "List pending reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Reservations.Active(cmd.Context())
			if err != nil {
				return err
			}
			printReservations(env, page.Results)
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "reservation")
			if err != nil {
				return err
			}
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := env.Services.Reservations.Cancel(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to cancel reservation: %w", err)
			}
			fmt.Fprintf(env.Out, "✓ Reservation %d cancelled\n", id)
			return nil
		},
	}

	cmd.AddCommand(ls, active, cancel)
	return cmd
}

func printReservations(env *Env, reservations []library.Reservation) {
	if len(reservations) == 0 {
		fmt.Fprintln(env.Out, "No reservations found.")
		return
	}

	w := env.table()
	fmt.Fprintln(w, "ID\tBOOK\tMEMBER\tRESERVED\tEXPIRES\tSTATUS")
	fmt.Fprintln(w, "──\t────\t──────\t────────\t───────\t──────")

	for _, r := range reservations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			library.Truncate(r.BookTitle, 36),
			orDash(r.UserName),
			library.FormatDate(r.ReservationDate),
			library.FormatDate(r.ExpiryDate),
			library.ReservationStatusBadge(r.Status).Text,
		)
	}

	w.Flush()
}
