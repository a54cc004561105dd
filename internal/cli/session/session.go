// Package session holds the signed-in user and drives the login, logout and
// session restore transitions on top of the persisted tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
	"github.com/shelfdesk/shelfdesk/internal/cli/client"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

// State is the position of a Store in its lifecycle
type State int

const (
	// Unloaded is the initial state, before LoadSession or Login ran
	Unloaded State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Authenticator exchanges credentials for a token pair
type Authenticator interface {
	ObtainTokens(ctx context.Context, username, password string) (*client.TokenPair, error)
}

// IdentityFetcher resolves the user behind the current access token
type IdentityFetcher interface {
	CurrentUser(ctx context.Context) (*library.User, error)
}

// Snapshot is a copy of the session state at one point in time
type Snapshot struct {
	State           State
	User            *library.User
	IsAuthenticated bool
	IsLoading       bool
}

// Store is the credential store. Create one per process with New and share it.
type Store struct {
	tokens   auth.Store
	authn    Authenticator
	identity IdentityFetcher
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
	user  *library.User
	hooks []func(error)
}

// New creates an Unloaded store
func New(tokens auth.Store, authn Authenticator, identity IdentityFetcher, logger zerolog.Logger) *Store {
	return &Store{
		tokens:   tokens,
		authn:    authn,
		identity: identity,
		logger:   logger,
		state:    Unloaded,
	}
}

// Snapshot returns the current state. The user is copied.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:           s.state,
		IsAuthenticated: s.user != nil,
		IsLoading:       s.state == Unloaded,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) State() State {
	return s.Snapshot().State
}

func (s *Store) User() *library.User {
	return s.Snapshot().User
}

func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated
}

// IsLoading is true until the session was restored or a login completed
func (s *Store) IsLoading() bool {
	return s.Snapshot().IsLoading
}

// OnLoginRequired registers fn to run whenever the session is torn down
// because the credentials can no longer be refreshed
func (s *Store) OnLoginRequired(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Login exchanges credentials for tokens, persists them and loads the user.
// A rejection returns *client.AuthenticationError and persists nothing.
func (s *Store) Login(ctx context.Context, username, password string) error {
	pair, err := s.authn.ObtainTokens(ctx, username, password)
	if err != nil {
		s.settleAnonymous()
		return err
	}

	if err := s.tokens.Set(auth.AccessTokenKey, pair.Access); err != nil {
		s.clearTokens()
		s.settleAnonymous()
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if err := s.tokens.Set(auth.RefreshTokenKey, pair.Refresh); err != nil {
		s.clearTokens()
		s.settleAnonymous()
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.clearTokens()
		s.becomeAnonymous()
		return fmt.Errorf("failed to load current user: %w", err)
	}

	s.becomeAuthenticated(user)
	s.logger.Debug().Str("username", user.Username).Msg("Logged in")
	return nil
}

// Logout clears the persisted tokens and forgets the user. It never fails.
func (s *Store) Logout() {
	s.clearTokens()
	s.becomeAnonymous()
	s.logger.Debug().Msg("Logged out")
}

// LoadSession restores the session from the persisted access token. It only does
// work while the store is Unloaded. Without a token no request is made. When the
// identity lookup fails the tokens are cleared and the error is returned; the store
// is Anonymous either way.
func (s *Store) LoadSession(ctx context.Context) error {
	if s.State() != Unloaded {
		return nil
	}

	access, err := auth.Lookup(s.tokens, auth.AccessTokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read access token")
	}
	if access == "" {
		s.settleAnonymous()
		return nil
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.clearTokens()
		s.becomeAnonymous()
		return fmt.Errorf("failed to restore session: %w", err)
	}

	s.becomeAuthenticated(user)
	return nil
}

// Expire tears the session down after a terminal refresh failure and runs the
// login-required hooks with cause
func (s *Store) Expire(cause error) {
	s.clearTokens()

	s.mu.Lock()
	s.state = Anonymous
	s.user = nil
	hooks := append([]func(error){}, s.hooks...)
	s.mu.Unlock()

	s.logger.Debug().Err(cause).Msg("Session expired")
	for _, fn := range hooks {
		fn(cause)
	}
}

func (s *Store) becomeAuthenticated(user *library.User) {
	u := *user
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticated
	s.user = &u
}

func (s *Store) becomeAnonymous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Anonymous
	s.user = nil
}

// settleAnonymous leaves an authenticated session alone and moves an unloaded one to Anonymous
func (s *Store) settleAnonymous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unloaded {
		s.state = Anonymous
	}
}

func (s *Store) clearTokens() {
	if err := auth.ClearAll(s.tokens); err != nil && !errors.Is(err, auth.ErrNotFound) {
		s.logger.Error().Err(err).Msg("Failed to clear tokens")
	}
}
