package library

import (
	"context"
	"net/http"
)

// TransactionService covers issuing, returning and renewing books
type TransactionService struct {
	r Requester
}

func (s *TransactionService) List(ctx context.Context, params ListParams) (*Page[Transaction], error) {
	var page Page[Transaction]
	if err := get(ctx, s.r, "transactions.List", "/transactions/", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *TransactionService) Get(ctx context.Context, id int) (*Transaction, error) {
	var tx Transaction
	if err := get(ctx, s.r, "transactions.Get", itemPath("transactions", id), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Active lists loans that were not returned yet
func (s *TransactionService) Active(ctx context.Context) (*Page[Transaction], error) {
	var page Page[Transaction]
	if err := get(ctx, s.r, "transactions.Active", "/transactions/active/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Overdue lists active loans past their due date
func (s *TransactionService) Overdue(ctx context.Context) (*Page[Transaction], error) {
	var page Page[Transaction]
	if err := get(ctx, s.r, "transactions.Overdue", "/transactions/overdue/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Issue lends a book to a user (staff only)
func (s *TransactionService) Issue(ctx context.Context, in IssueRequest) (*Transaction, error) {
	var tx Transaction
	if err := send(ctx, s.r, "transactions.Issue", http.MethodPost, "/transactions/issue_book/", in, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Return closes a loan (staff only)
func (s *TransactionService) Return(ctx context.Context, transactionID int, remarks string) (*Transaction, error) {
	body := struct {
		TransactionID int    `json:"transaction_id"`
		Remarks       string `json:"remarks,omitempty"`
	}{transactionID, remarks}

	var tx Transaction
	if err := send(ctx, s.r, "transactions.Return", http.MethodPost, "/transactions/return_book/", body, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Renew moves the due date of an active loan
func (s *TransactionService) Renew(ctx context.Context, transactionID int, newDueDate string) (*Transaction, error) {
	body := struct {
		NewDueDate string `json:"new_due_date"`
	}{newDueDate}

	var tx Transaction
	if err := send(ctx, s.r, "transactions.Renew", http.MethodPost, itemPath("transactions", transactionID, "renew"), body, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *TransactionService) Statistics(ctx context.Context) (*TransactionStatistics, error) {
	var stats TransactionStatistics
	if err := get(ctx, s.r, "transactions.Statistics", "/transactions/statistics/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ReservationService holds books for members
type ReservationService struct {
	r Requester
}

func (s *ReservationService) List(ctx context.Context, params ListParams) (*Page[Reservation], error) {
	var page Page[Reservation]
	if err := get(ctx, s.r, "reservations.List", "/reservations/", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ReservationService) Get(ctx context.Context, id int) (*Reservation, error) {
	var res Reservation
	if err := get(ctx, s.r, "reservations.Get", itemPath("reservations", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Create reserves a book for the current user
func (s *ReservationService) Create(ctx context.Context, bookID int) (*Reservation, error) {
	body := struct {
		Book int `json:"book"`
	}{bookID}

	var res Reservation
	if err := send(ctx, s.r, "reservations.Create", http.MethodPost, "/reservations/", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ReservationService) Cancel(ctx context.Context, id int) error {
	return send(ctx, s.r, "reservations.Cancel", http.MethodPost, itemPath("reservations", id, "cancel"), nil, nil)
}

// Active lists reservations that are still pending
func (s *ReservationService) Active(ctx context.Context) (*Page[Reservation], error) {
	var page Page[Reservation]
	if err := get(ctx, s.r, "reservations.Active", "/reservations/active/", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
