package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewIssueCmd creates the issue command
func NewIssueCmd(env *Env) *cobra.Command {
	var due, remarks string

	cmd := &cobra.Command{
		Use:   "issue <user-id> <book-id>",
		Short: "Lend a book to a member (staff only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			bookID, err := parseID(args[1], "book")
			if err != nil {
				return err
			}
			return runIssue(cmd.Context(), env, library.IssueRequest{
				User:    userID,
				Book:    bookID,
				DueDate: due,
				Remarks: remarks,
			})
		},
	}

	cmd.Flags().StringVar(&due, "due", "", fmt.Sprintf("Due date YYYY-MM-DD (default %d days from today)", library.DefaultLoanDays))
	cmd.Flags().StringVar(&remarks, "remarks", "", "Remarks stored with the loan")

	return cmd
}

func runIssue(ctx context.Context, env *Env, req library.IssueRequest) error {
	if req.DueDate == "" {
		req.DueDate = library.DefaultDueDate(env.Now())
	}
	if err := validateDueDate(req.DueDate, env.Now()); err != nil {
		return err
	}

	if _, err := env.requireStaff(ctx); err != nil {
		return err
	}

	tx, err := env.Services.Transactions.Issue(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to issue book: %w", err)
	}

	fmt.Fprintf(env.Out, "✓ Issued %q to %s (loan %d)\n", tx.BookTitle, orDash(tx.UserName), tx.ID)
	fmt.Fprintf(env.Out, "  Due: %s\n", library.FormatDate(tx.DueDate))
	return nil
}

// NewReturnCmd creates the return command
func NewReturnCmd(env *Env) *cobra.Command {
	var remarks string

	cmd := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Record a returned book (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			return runReturn(cmd.Context(), env, id, remarks)
		},
	}

	cmd.Flags().StringVar(&remarks, "remarks", "", "Remarks, e.g. the condition of the book")

	return cmd
}

func runReturn(ctx context.Context, env *Env, id int, remarks string) error {
	if _, err := env.requireStaff(ctx); err != nil {
		return err
	}

	tx, err := env.Services.Transactions.Return(ctx, id, remarks)
	if err != nil {
		return fmt.Errorf("failed to return book: %w", err)
	}

	fmt.Fprintf(env.Out, "✓ Returned %q\n", tx.BookTitle)
	if tx.FineAmount != "" && tx.FineAmount != "0" && tx.FineAmount != "0.00" {
		fmt.Fprintf(env.Out, "  Fine due: %s\n", tx.FineAmount)
	}
	return nil
}

// NewRenewCmd creates the renew command
func NewRenewCmd(env *Env) *cobra.Command {
	var due string

	cmd := &cobra.Command{
		Use:   "renew <loan-id>",
		Short: "Extend the due date of a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			return runRenew(cmd.Context(), env, id, due)
		},
	}

	cmd.Flags().StringVar(&due, "due", "", fmt.Sprintf("New due date YYYY-MM-DD (default %d days from today)", library.DefaultLoanDays))

	return cmd
}

func runRenew(ctx context.Context, env *Env, id int, due string) error {
	if due == "" {
		due = library.DefaultDueDate(env.Now())
	}
	if err := validateDueDate(due, env.Now()); err != nil {
		return err
	}

	if _, err := env.requireUser(ctx); err != nil {
		return err
	}

	tx, err := env.Services.Transactions.Renew(ctx, id, due)
	if err != nil {
		return fmt.Errorf("failed to renew loan: %w", err)
	}

	fmt.Fprintf(env.Out, "✓ Renewed %q until %s\n", tx.BookTitle, library.FormatDate(tx.DueDate))
	return nil
}

// NewLoansCmd creates the loans command group
func NewLoansCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loans",
		Aliases: []string{"transactions"},
		Short:   "List loans",
	}

	var status string
	var user, page int
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List loans (members see their own)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			params := library.ListParams{
				Ordering: "-issue_date",
				Page:     page,
				Filters:  map[string]string{"status": status},
			}
			if user > 0 {
				params.Filters["user"] = strconv.Itoa(user)
			}
			result, err := env.Services.Transactions.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			printLoans(env, result.Results)
			return nil
		},
	}
	ls.Flags().StringVar(&status, "status", "", "Filter by status (issued, returned, overdue, lost)")
	ls.Flags().IntVar(&user, "user", 0, "Filter by user ID (staff only)")
	ls.Flags().IntVar(&page, "page", 0, "Page number")

	active := &cobra.Command{
		Use:   "active",
		Short: "List loans that were not returned yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			result, err := env.Services.Transactions.Active(cmd.Context())
			if err != nil {
				return err
			}
			printLoans(env, result.Results)
			return nil
		},
	}

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "List loans past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			result, err := env.Services.Transactions.Overdue(cmd.Context())
			if err != nil {
				return err
			}
			printLoans(env, result.Results)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show circulation statistics (staff only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireStaff(cmd.Context()); err != nil {
				return err
			}
			s, err := env.Services.Transactions.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			printLoanStats(env, s)
			return nil
		},
	}

	cmd.AddCommand(ls, active, overdue, stats)
	return cmd
}

func printLoans(env *Env, loans []library.Transaction) {
	if len(loans) == 0 {
		fmt.Fprintln(env.Out, "No loans found.")
		return
	}

	now := env.Now()
	w := env.table()
	fmt.Fprintln(w, "ID\tBOOK\tMEMBER\tISSUED\tDUE\tSTATUS")
	fmt.Fprintln(w, "──\t────\t──────\t──────\t───\t──────")

	for _, tx := range loans {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID,
			library.Truncate(tx.BookTitle, 36),
			orDash(tx.UserName),
			library.FormatDate(tx.IssueDate),
			dueLabel(tx, now),
			library.TransactionStatusBadge(tx.Status).Text,
		)
	}

	w.Flush()
}

// dueLabel renders the due date with a relative hint for loans still out
func dueLabel(tx library.Transaction, now time.Time) string {
	label := library.FormatDate(tx.DueDate)
	if tx.ReturnDate != nil {
		return label
	}

	days, ok := library.DaysUntil(tx.DueDate, now)
	switch {
	case !ok:
		return label
	case days < 0:
		return fmt.Sprintf("%s (%d days overdue)", label, -days)
	case days == 0:
		return label + " (today)"
	case days <= 3:
		return fmt.Sprintf("%s (in %d days)", label, days)
	default:
		return label
	}
}

func printLoanStats(env *Env, s *library.TransactionStatistics) {
	fmt.Fprintf(env.Out, "Loans:         %d\n", s.TotalTransactions)
	fmt.Fprintf(env.Out, "Active:        %d\n", s.ActiveTransactions)
	fmt.Fprintf(env.Out, "Overdue:       %d\n", s.OverdueTransactions)
	fmt.Fprintf(env.Out, "Unpaid fines:  %.2f\n", s.TotalUnpaidFines)
}

func validateDueDate(due string, now time.Time) error {
	t, err := time.Parse("2006-01-02", due)
	if err != nil {
		return fmt.Errorf("invalid due date %q (expected YYYY-MM-DD)", due)
	}
	if days, _ := library.DaysUntil(library.APIDate(t), now); days < 1 {
		return fmt.Errorf("due date %s must be in the future", due)
	}
	return nil
}
