package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewBooksCmd creates the books command group
func NewBooksCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "books",
		Aliases: []string{"book"},
		Short:   "Browse the catalog",
	}

	cmd.AddCommand(
		newBooksListCmd(env),
		newBooksShowCmd(env),
		newBooksSearchCmd(env),
		newBooksAvailableCmd(env),
		newBooksStatsCmd(env),
	)

	return cmd
}

type bookListOptions struct {
	search   string
	status   string
	category string
	ordering string
	page     int
}

func newBooksListCmd(env *Env) *cobra.Command {
	var opts bookListOptions

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBooksList(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Match title, author, ISBN or keywords")
	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by status (available, issued, reserved, maintenance, lost)")
	cmd.Flags().StringVar(&opts.category, "category", "", "Filter by category ID")
	cmd.Flags().StringVar(&opts.ordering, "order", "", "Order by field, prefix with - for descending (e.g. -added_date)")
	cmd.Flags().IntVar(&opts.page, "page", 0, "Page number")

	return cmd
}

func runBooksList(ctx context.Context, env *Env, opts bookListOptions) error {
	if _, err := env.requireUser(ctx); err != nil {
		return err
	}

	page, err := env.Services.Books.List(ctx, library.ListParams{
		Search:   opts.search,
		Ordering: opts.ordering,
		Page:     opts.page,
		Filters: map[string]string{
			"status":   opts.status,
			"category": opts.category,
		},
	})
	if err != nil {
		return err
	}

	printBooks(env, page.Results)
	if page.HasMore() {
		fmt.Fprintf(env.Out, "\nShowing %d of %d books. Use --page to see more.\n", len(page.Results), page.Count)
	}
	return nil
}

func newBooksShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show book details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			return runBooksShow(cmd.Context(), env, id)
		},
	}
}

func runBooksShow(ctx context.Context, env *Env, id int) error {
	if _, err := env.requireUser(ctx); err != nil {
		return err
	}

	book, err := env.Services.Books.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "%s\n", book.Title)
	if sub := deref(book.Subtitle); sub != "" {
		fmt.Fprintf(env.Out, "%s\n", sub)
	}
	fmt.Fprintln(env.Out)
	fmt.Fprintf(env.Out, "Author:      %s\n", book.Author)
	fmt.Fprintf(env.Out, "ISBN:        %s\n", book.ISBN)
	fmt.Fprintf(env.Out, "Publisher:   %s\n", orDash(book.Publisher))
	fmt.Fprintf(env.Out, "Published:   %s\n", library.FormatDate(deref(book.PublicationDate)))
	fmt.Fprintf(env.Out, "Category:    %s\n", orDash(book.CategoryName))
	fmt.Fprintf(env.Out, "Status:      %s\n", library.BookStatusBadge(book.Status).Text)
	fmt.Fprintf(env.Out, "Copies:      %d of %d available\n", book.AvailableCopies, book.TotalCopies)
	fmt.Fprintf(env.Out, "Location:    %s %s\n", orDash(book.Location), book.CallNumber)
	if desc := deref(book.Description); desc != "" {
		fmt.Fprintf(env.Out, "\n%s\n", library.Truncate(desc, 400))
	}

	return nil
}

func newBooksSearchCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search books by title, author, ISBN or keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Books.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBooks(env, page.Results)
			return nil
		},
	}
}

func newBooksAvailableCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List books with copies on the shelf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Books.Available(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(env, page.Results)
			return nil
		},
	}
}

func newBooksStatsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			stats, err := env.Services.Books.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			printBookStats(env, stats)
			return nil
		},
	}
}

func printBooks(env *Env, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(env.Out, "No books found.")
		return
	}

	w := env.table()
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCATEGORY\tSTATUS\tAVAILABLE")
	fmt.Fprintln(w, "──\t─────\t──────\t────────\t──────\t─────────")

	for _, b := range books {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\n",
			b.ID,
			library.Truncate(b.Title, 40),
			library.Truncate(b.Author, 24),
			orDash(b.CategoryName),
			library.BookStatusBadge(b.Status).Text,
			b.AvailableCopies,
			b.TotalCopies,
		)
	}

	w.Flush()
}

func printBookStats(env *Env, s *library.BookStatistics) {
	fmt.Fprintf(env.Out, "Titles:           %d\n", s.TotalBooks)
	fmt.Fprintf(env.Out, "Available titles: %d\n", s.AvailableBooks)
	fmt.Fprintf(env.Out, "Issued titles:    %d\n", s.IssuedBooks)
	fmt.Fprintf(env.Out, "Copies:           %d (%d on the shelf)\n", s.TotalCopies, s.AvailableCopies)
}
