package picker

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/shelfdesk/shelfdesk/internal/library"
)

// ErrNoMatches is returned when there is nothing to pick from
var ErrNoMatches = errors.New("no books match")

// Selector runs an interactive selection over labels and returns the chosen index
type Selector func(label string, items []string) (int, error)

// PickBook resolves a search result to a single book. One match is returned
// directly; several matches are offered through sel.
func PickBook(books []library.Book, sel Selector) (*library.Book, error) {
	switch len(books) {
	case 0:
		return nil, ErrNoMatches
	case 1:
		return &books[0], nil
	}

	labels := make([]string, len(books))
	for i, b := range books {
		labels[i] = BookLabel(b)
	}

	index, err := sel("Select a book", labels)
	if err != nil {
		return nil, fmt.Errorf("book selection cancelled: %w", err)
	}
	if index < 0 || index >= len(books) {
		return nil, fmt.Errorf("book selection out of range: %d", index)
	}

	return &books[index], nil
}

// BookLabel is the one-line description shown for a book in the picker
func BookLabel(b library.Book) string {
	return fmt.Sprintf("%s by %s (%d/%d available)",
		library.Truncate(b.Title, 48), b.Author, b.AvailableCopies, b.TotalCopies)
}

// Prompt is the terminal Selector backed by promptui
func Prompt(label string, items []string) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | green }}",
	}

	prompt := promptui.Select{
		Label:     label,
		Items:     items,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	return index, err
}
