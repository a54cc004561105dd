package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"dashboard"},
		Short:   "Show library analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), env)
		},
	}
}

func runStats(ctx context.Context, env *Env) error {
	user, err := env.requireUser(ctx)
	if err != nil {
		return err
	}

	books, err := env.Services.Books.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(env.Out, "Catalog")
	printBookStats(env, books)

	if books.TotalCopies > 0 {
		utilization := float64(books.TotalCopies-books.AvailableCopies) / float64(books.TotalCopies) * 100
		fmt.Fprintf(env.Out, "Utilization:      %.1f%%\n", utilization)
	}

	if !user.Staff() {
		return nil
	}

	loans, err := env.Services.Transactions.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(env.Out, "\nCirculation")
	printLoanStats(env, loans)

	if loans.ActiveTransactions > 0 {
		rate := float64(loans.OverdueTransactions) / float64(loans.ActiveTransactions) * 100
		fmt.Fprintf(env.Out, "Overdue rate:  %.1f%%\n", rate)
	}

	return nil
}
