// Package library wraps the library REST API in typed services.
// Every call goes through a Requester, normally the resilient request client.
package library

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Requester is the outbound request surface the services are built on
type Requester interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Services bundles one service per backend resource
type Services struct {
	Auth         *AuthService
	Users        *UserService
	Books        *BookService
	Categories   *CategoryService
	Transactions *TransactionService
	Reservations *ReservationService
}

// NewServices creates all services on top of r
func NewServices(r Requester) *Services {
	return &Services{
		Auth:         &AuthService{r: r},
		Users:        &UserService{r: r},
		Books:        &BookService{r: r},
		Categories:   &CategoryService{r: r},
		Transactions: &TransactionService{r: r},
		Reservations: &ReservationService{r: r},
	}
}

// ListParams are the filter, search, ordering and paging parameters shared by list endpoints
type ListParams struct {
	Search   string
	Ordering string
	Page     int
	// Filters holds resource specific filters such as status or user_type
	Filters map[string]string
}

// Values encodes the parameters as a query string
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Ordering != "" {
		v.Set("ordering", p.Ordering)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	for key, value := range p.Filters {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}

func get(ctx context.Context, r Requester, op, path string, query url.Values, out any) error {
	if err := r.Do(ctx, http.MethodGet, path, query, nil, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func send(ctx context.Context, r Requester, op, method, path string, body, out any) error {
	if err := r.Do(ctx, method, path, nil, body, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func itemPath(resource string, id int, action ...string) string {
	p := fmt.Sprintf("/%s/%d/", resource, id)
	for _, a := range action {
		p += a + "/"
	}
	return p
}
