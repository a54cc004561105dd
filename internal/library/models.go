package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// User mirrors the backend user serializer
type User struct {
	ID                  int     `json:"id"`
	Username            string  `json:"username"`
	Email               string  `json:"email"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	UserType            string  `json:"user_type"`
	Status              string  `json:"status"`
	IsStaff             bool    `json:"is_staff"`
	PhoneNumber         *string `json:"phone_number,omitempty"`
	Address             *string `json:"address,omitempty"`
	LibraryCardNumber   *string `json:"library_card_number,omitempty"`
	MaxBooksAllowed     int     `json:"max_books_allowed"`
	BooksIssuedCount    int     `json:"books_issued_count"`
	CanIssueBooks       bool    `json:"can_issue_books"`
	IsMembershipActive  bool    `json:"is_membership_active"`
	MembershipStartDate string  `json:"membership_start_date,omitempty"`
	MembershipEndDate   *string `json:"membership_end_date,omitempty"`
	DateJoined          string  `json:"date_joined,omitempty"`
}

// DisplayName returns "First Last", falling back to the username
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// CardNumber returns the library card number or "" when none was assigned
func (u User) CardNumber() string {
	if u.LibraryCardNumber == nil {
		return ""
	}
	return *u.LibraryCardNumber
}

// Staff reports whether the user may run circulation and user administration
func (u User) Staff() bool {
	return u.IsStaff || u.UserType == "staff"
}

// UserInput is the writable subset of a user used by register/create/update
type UserInput struct {
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	Password        string `json:"password,omitempty"`
	PasswordConfirm string `json:"password_confirm,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	UserType        string `json:"user_type,omitempty"`
	Status          string `json:"status,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Address         string `json:"address,omitempty"`
	MaxBooksAllowed int    `json:"max_books_allowed,omitempty"`
}

// Category is a book genre
type Category struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	BooksCount  int     `json:"books_count"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// CategoryInput is the writable subset of a category
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Book mirrors the backend book serializer. List endpoints only fill a subset.
type Book struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	Subtitle        *string `json:"subtitle,omitempty"`
	ISBN            string  `json:"isbn"`
	Author          string  `json:"author"`
	Publisher       string  `json:"publisher,omitempty"`
	PublicationDate *string `json:"publication_date,omitempty"`
	Category        *int    `json:"category,omitempty"`
	CategoryName    string  `json:"category_name,omitempty"`
	Language        string  `json:"language,omitempty"`
	Pages           *int    `json:"pages,omitempty"`
	Format          string  `json:"format,omitempty"`
	Status          string  `json:"status"`
	Condition       string  `json:"condition,omitempty"`
	Location        string  `json:"location,omitempty"`
	CallNumber      string  `json:"call_number,omitempty"`
	TotalCopies     int     `json:"total_copies"`
	AvailableCopies int     `json:"available_copies"`
	IssuedCopies    int     `json:"issued_copies,omitempty"`
	Price           *string `json:"price,omitempty"`
	Description     *string `json:"description,omitempty"`
	CoverImage      *string `json:"cover_image,omitempty"`
	Keywords        *string `json:"keywords,omitempty"`
	IsAvailable     bool    `json:"is_available"`
	AddedDate       string  `json:"added_date,omitempty"`
}

// BookInput is the writable subset of a book
type BookInput struct {
	Title       string `json:"title"`
	ISBN        string `json:"isbn"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Category    *int   `json:"category,omitempty"`
	Location    string `json:"location"`
	CallNumber  string `json:"call_number"`
	TotalCopies int    `json:"total_copies,omitempty"`
	Language    string `json:"language,omitempty"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	CoverImage  string `json:"cover_image,omitempty"`
}

// Transaction is a single issue of a book to a user
type Transaction struct {
	ID             int     `json:"id"`
	User           int     `json:"user"`
	UserName       string  `json:"user_name"`
	Book           int     `json:"book"`
	BookTitle      string  `json:"book_title"`
	BookISBN       string  `json:"book_isbn"`
	IssueDate      string  `json:"issue_date"`
	DueDate        string  `json:"due_date"`
	ReturnDate     *string `json:"return_date,omitempty"`
	Status         string  `json:"status"`
	FineAmount     string  `json:"fine_amount,omitempty"`
	FinePaid       bool    `json:"fine_paid"`
	IssuedByName   string  `json:"issued_by_name,omitempty"`
	ReturnedToName string  `json:"returned_to_name,omitempty"`
	Remarks        *string `json:"remarks,omitempty"`
	IsOverdue      bool    `json:"is_overdue"`
	DaysOverdue    int     `json:"days_overdue"`
}

// IssueRequest issues a book to a user until DueDate (YYYY-MM-DD)
type IssueRequest struct {
	User    int    `json:"user"`
	Book    int    `json:"book"`
	DueDate string `json:"due_date"`
	Remarks string `json:"remarks,omitempty"`
}

// Reservation holds a book for a user until it expires
type Reservation struct {
	ID              int     `json:"id"`
	User            int     `json:"user"`
	UserName        string  `json:"user_name"`
	Book            int     `json:"book"`
	BookTitle       string  `json:"book_title"`
	BookISBN        string  `json:"book_isbn"`
	ReservationDate string  `json:"reservation_date"`
	ExpiryDate      string  `json:"expiry_date"`
	Status          string  `json:"status"`
	Notified        bool    `json:"notified"`
	Remarks         *string `json:"remarks,omitempty"`
	IsExpired       bool    `json:"is_expired"`
}

// BookStatistics is the catalog summary
type BookStatistics struct {
	TotalBooks      int `json:"total_books"`
	AvailableBooks  int `json:"available_books"`
	IssuedBooks     int `json:"issued_books"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

// TransactionStatistics is the circulation summary (staff only)
type TransactionStatistics struct {
	TotalTransactions   int     `json:"total_transactions"`
	ActiveTransactions  int     `json:"active_transactions"`
	OverdueTransactions int     `json:"overdue_transactions"`
	TotalUnpaidFines    float64 `json:"total_unpaid_fines"`
}

// Page is one page of a list endpoint. The backend may answer with a paginated
// envelope or with a bare JSON array; both decode into a Page.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		p.Results = items
		p.Count = len(items)
		return nil
	}

	var envelope struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  []T     `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fmt.Errorf("decode page: %w", err)
	}
	p.Count = envelope.Count
	p.Next = envelope.Next
	p.Previous = envelope.Previous
	p.Results = envelope.Results
	return nil
}

// HasMore reports whether another page follows
func (p *Page[T]) HasMore() bool {
	return p.Next != nil && *p.Next != ""
}
