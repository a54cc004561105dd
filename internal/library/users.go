package library

import (
	"context"
	"net/http"
)

// AuthService covers self-service account endpoints
type AuthService struct {
	r Requester
}

// Register creates a new member account
func (s *AuthService) Register(ctx context.Context, in UserInput) (*User, error) {
	var u User
	if err := send(ctx, s.r, "auth.Register", http.MethodPost, "/users/", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CurrentUser returns the identity behind the current access token
func (s *AuthService) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := get(ctx, s.r, "auth.CurrentUser", "/users/me/", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile updates the current user's own profile
func (s *AuthService) UpdateProfile(ctx context.Context, in UserInput) (*User, error) {
	var u User
	if err := send(ctx, s.r, "auth.UpdateProfile", http.MethodPut, "/users/update_profile/", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserService is the staff-facing user administration API
type UserService struct {
	r Requester
}

func (s *UserService) List(ctx context.Context, params ListParams) (*Page[User], error) {
	var page Page[User]
	if err := get(ctx, s.r, "users.List", "/users/", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *UserService) Get(ctx context.Context, id int) (*User, error) {
	var u User
	if err := get(ctx, s.r, "users.Get", itemPath("users", id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*User, error) {
	var u User
	if err := send(ctx, s.r, "users.Create", http.MethodPost, "/users/", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) Update(ctx context.Context, id int, in UserInput) (*User, error) {
	var u User
	if err := send(ctx, s.r, "users.Update", http.MethodPut, itemPath("users", id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return send(ctx, s.r, "users.Delete", http.MethodDelete, itemPath("users", id), nil, nil)
}

// Transactions lists the loans of one user
func (s *UserService) Transactions(ctx context.Context, id int) (*Page[Transaction], error) {
	var page Page[Transaction]
	if err := get(ctx, s.r, "users.Transactions", itemPath("users", id, "transactions"), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Reservations lists the reservations of one user
func (s *UserService) Reservations(ctx context.Context, id int) (*Page[Reservation], error) {
	var page Page[Reservation]
	if err := get(ctx, s.r, "users.Reservations", itemPath("users", id, "reservations"), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
