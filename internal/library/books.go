package library

import (
	"context"
	"net/http"
	"net/url"
)

// BookService is the catalog API
type BookService struct {
	r Requester
}

func (s *BookService) List(ctx context.Context, params ListParams) (*Page[Book], error) {
	var page Page[Book]
	if err := get(ctx, s.r, "books.List", "/books/", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *BookService) Get(ctx context.Context, id int) (*Book, error) {
	var b Book
	if err := get(ctx, s.r, "books.Get", itemPath("books", id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BookService) Create(ctx context.Context, in BookInput) (*Book, error) {
	var b Book
	if err := send(ctx, s.r, "books.Create", http.MethodPost, "/books/", in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BookService) Update(ctx context.Context, id int, in BookInput) (*Book, error) {
	var b Book
	if err := send(ctx, s.r, "books.Update", http.MethodPut, itemPath("books", id), in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BookService) Delete(ctx context.Context, id int) error {
	return send(ctx, s.r, "books.Delete", http.MethodDelete, itemPath("books", id), nil, nil)
}

// Available lists books with at least one copy on the shelf
func (s *BookService) Available(ctx context.Context) (*Page[Book], error) {
	var page Page[Book]
	if err := get(ctx, s.r, "books.Available", "/books/available/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search matches title, author, ISBN and keywords
func (s *BookService) Search(ctx context.Context, query string) (*Page[Book], error) {
	var page Page[Book]
	if err := get(ctx, s.r, "books.Search", "/books/", url.Values{"search": {query}}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *BookService) Statistics(ctx context.Context) (*BookStatistics, error) {
	var stats BookStatistics
	if err := get(ctx, s.r, "books.Statistics", "/books/statistics/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Transactions lists the loan history of one book
func (s *BookService) Transactions(ctx context.Context, id int) (*Page[Transaction], error) {
	var page Page[Transaction]
	if err := get(ctx, s.r, "books.Transactions", itemPath("books", id, "transactions"), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CategoryService manages book categories
type CategoryService struct {
	r Requester
}

func (s *CategoryService) List(ctx context.Context) (*Page[Category], error) {
	var page Page[Category]
	if err := get(ctx, s.r, "categories.List", "/categories/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *CategoryService) Get(ctx context.Context, id int) (*Category, error) {
	var c Category
	if err := get(ctx, s.r, "categories.Get", itemPath("categories", id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*Category, error) {
	var c Category
	if err := send(ctx, s.r, "categories.Create", http.MethodPost, "/categories/", in, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryService) Update(ctx context.Context, id int, in CategoryInput) (*Category, error) {
	var c Category
	if err := send(ctx, s.r, "categories.Update", http.MethodPut, itemPath("categories", id), in, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int) error {
	return send(ctx, s.r, "categories.Delete", http.MethodDelete, itemPath("categories", id), nil, nil)
}

// Books lists the books filed under a category
func (s *CategoryService) Books(ctx context.Context, id int) (*Page[Book], error) {
	var page Page[Book]
	if err := get(ctx, s.r, "categories.Books", itemPath("categories", id, "books"), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
