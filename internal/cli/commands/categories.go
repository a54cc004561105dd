package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewCategoriesCmd creates the categories command group
func NewCategoriesCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Browse book categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Categories.List(cmd.Context())
			if err != nil {
				return err
			}
			printCategories(env, page.Results)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "books <category-id>",
		Short: "List the books in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category")
			if err != nil {
				return err
			}
			if _, err := env.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := env.Services.Categories.Books(cmd.Context(), id)
			if err != nil {
				return err
			}
			printBooks(env, page.Results)
			return nil
		},
	})

	return cmd
}

func printCategories(env *Env, categories []library.Category) {
	if len(categories) == 0 {
		fmt.Fprintln(env.Out, "No categories found.")
		return
	}

	w := env.table()
	fmt.Fprintln(w, "ID\tNAME\tBOOKS\tDESCRIPTION")
	fmt.Fprintln(w, "──\t────\t─────\t───────────")

	for _, c := range categories {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.BooksCount, library.Truncate(deref(c.Description), 50))
	}

	w.Flush()
}
