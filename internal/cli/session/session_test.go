package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
	"github.com/shelfdesk/shelfdesk/internal/cli/client"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

type stubAuthenticator struct {
	pair  *client.TokenPair
	err   error
	calls int
}

func (s *stubAuthenticator) ObtainTokens(ctx context.Context, username, password string) (*client.TokenPair, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pair, nil
}

type stubIdentity struct {
	user  *library.User
	err   error
	calls int
}

func (s *stubIdentity) CurrentUser(ctx context.Context) (*library.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func newTestStore(authn Authenticator, identity IdentityFetcher) (*Store, auth.Store) {
	tokens := auth.NewMemoryStore()
	return New(tokens, authn, identity, zerolog.Nop()), tokens
}

func mustLookup(t *testing.T, s auth.Store, key string) string {
	t.Helper()
	v, err := auth.Lookup(s, key)
	require.NoError(t, err)
	return v
}

func TestStore_StartsUnloaded(t *testing.T) {
	store, _ := newTestStore(&stubAuthenticator{}, &stubIdentity{})

	snap := store.Snapshot()
	assert.Equal(t, Unloaded, snap.State)
	assert.True(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
}

func TestLoadSession_NoToken(t *testing.T) {
	identity := &stubIdentity{}
	store, _ := newTestStore(&stubAuthenticator{}, identity)

	require.NoError(t, store.LoadSession(context.Background()))

	snap := store.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
	assert.Zero(t, identity.calls, "no identity request without a token")
}

func TestLoadSession_RestoresUser(t *testing.T) {
	identity := &stubIdentity{user: &library.User{ID: 3, Username: "ada"}}
	store, tokens := newTestStore(&stubAuthenticator{}, identity)
	require.NoError(t, tokens.Set(auth.AccessTokenKey, "access"))

	require.NoError(t, store.LoadSession(context.Background()))

	snap := store.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.False(t, snap.IsLoading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ada", snap.User.Username)

	// Runs only once
	require.NoError(t, store.LoadSession(context.Background()))
	assert.Equal(t, 1, identity.calls)
}

func TestLoadSession_FailureClearsTokens(t *testing.T) {
	identity := &stubIdentity{err: errors.New("connection refused")}
	store, tokens := newTestStore(&stubAuthenticator{}, identity)
	require.NoError(t, tokens.Set(auth.AccessTokenKey, "access"))
	require.NoError(t, tokens.Set(auth.RefreshTokenKey, "refresh"))

	err := store.LoadSession(context.Background())
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, mustLookup(t, tokens, auth.AccessTokenKey))
	assert.Empty(t, mustLookup(t, tokens, auth.RefreshTokenKey))
}

func TestLogin_Success(t *testing.T) {
	authn := &stubAuthenticator{pair: &client.TokenPair{Access: "a1", Refresh: "r1"}}
	identity := &stubIdentity{user: &library.User{ID: 7, Username: "librarian", IsStaff: true}}
	store, tokens := newTestStore(authn, identity)

	require.NoError(t, store.Login(context.Background(), "librarian", "secret"))

	assert.Equal(t, "a1", mustLookup(t, tokens, auth.AccessTokenKey))
	assert.Equal(t, "r1", mustLookup(t, tokens, auth.RefreshTokenKey))

	snap := store.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.User.IsStaff)
}

func TestLogin_Rejected(t *testing.T) {
	rejected := &client.AuthenticationError{Err: &client.HTTPError{StatusCode: 400, Message: "No active account"}}
	identity := &stubIdentity{}
	store, tokens := newTestStore(&stubAuthenticator{err: rejected}, identity)
	require.NoError(t, store.LoadSession(context.Background()))

	err := store.Login(context.Background(), "bad", "creds")

	var authErr *client.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Anonymous, store.State())
	assert.Empty(t, mustLookup(t, tokens, auth.AccessTokenKey))
	assert.Empty(t, mustLookup(t, tokens, auth.RefreshTokenKey))
	assert.Zero(t, identity.calls)
}

func TestLogin_IdentityFailureClearsTokens(t *testing.T) {
	authn := &stubAuthenticator{pair: &client.TokenPair{Access: "a1", Refresh: "r1"}}
	store, tokens := newTestStore(authn, &stubIdentity{err: errors.New("boom")})

	err := store.Login(context.Background(), "ada", "pw")
	require.Error(t, err)

	assert.Equal(t, Anonymous, store.State())
	assert.Empty(t, mustLookup(t, tokens, auth.AccessTokenKey))
	assert.Empty(t, mustLookup(t, tokens, auth.RefreshTokenKey))
}

func TestLogout(t *testing.T) {
	authn := &stubAuthenticator{pair: &client.TokenPair{Access: "a1", Refresh: "r1"}}
	store, tokens := newTestStore(authn, &stubIdentity{user: &library.User{Username: "ada"}})
	require.NoError(t, store.Login(context.Background(), "ada", "pw"))

	store.Logout()

	assert.Equal(t, Anonymous, store.State())
	assert.Nil(t, store.User())
	assert.Empty(t, mustLookup(t, tokens, auth.AccessTokenKey))

	// Logging out twice is harmless
	store.Logout()
	assert.Equal(t, Anonymous, store.State())
}

func TestExpire_RunsHooks(t *testing.T) {
	authn := &stubAuthenticator{pair: &client.TokenPair{Access: "a1", Refresh: "r1"}}
	store, tokens := newTestStore(authn, &stubIdentity{user: &library.User{Username: "ada"}})
	require.NoError(t, store.Login(context.Background(), "ada", "pw"))

	var got []error
	store.OnLoginRequired(func(err error) { got = append(got, err) })

	cause := errors.New("refresh rejected")
	store.Expire(cause)

	assert.Equal(t, Anonymous, store.State())
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, mustLookup(t, tokens, auth.RefreshTokenKey))
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], cause)
}

func TestSnapshot_CopiesUser(t *testing.T) {
	store, tokens := newTestStore(&stubAuthenticator{}, &stubIdentity{user: &library.User{Username: "ada"}})
	require.NoError(t, tokens.Set(auth.AccessTokenKey, "access"))
	require.NoError(t, store.LoadSession(context.Background()))

	u := store.User()
	u.Username = "mallory"
	assert.Equal(t, "ada", store.User().Username)
}

// TestStore_WithRequestClient runs the whole lifecycle against a fake backend
// through the real request client
func TestStore_WithRequestClient(t *testing.T) {
	var meCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "ada" || creds.Password != "lovelace" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "No active account found with the given credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access": "expired-access", "refresh": "bad-refresh"}`))
	})
	mux.HandleFunc("/api/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Token is invalid or expired"}`))
	})
	mux.HandleFunc("/api/users/me/", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		_, _ = w.Write([]byte(`{"id": 1, "username": "ada", "user_type": "faculty", "max_books_allowed": 5}`))
	})
	mux.HandleFunc("/api/books/42/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := auth.NewMemoryStore()
	api := client.New(server.URL+"/api", tokens)
	services := library.NewServices(api)
	store := New(tokens, api, services.Auth, zerolog.Nop())
	api.SetExpiryHandler(store.Expire)

	var redirects atomic.Int32
	store.OnLoginRequired(func(error) { redirects.Add(1) })

	ctx := context.Background()
	require.NoError(t, store.LoadSession(ctx))
	assert.Zero(t, meCalls.Load())

	err := store.Login(ctx, "bad", "creds")
	var authErr *client.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Anonymous, store.State())

	require.NoError(t, store.Login(ctx, "ada", "lovelace"))
	assert.Equal(t, Authenticated, store.State())
	assert.Equal(t, "faculty", store.User().UserType)

	// The access token is rejected and the refresh token is invalid
	_, err = services.Books.Get(ctx, 42)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Equal(t, Anonymous, store.State())
	assert.Equal(t, int32(1), redirects.Load())
	assert.Empty(t, mustLookup(t, tokens, auth.AccessTokenKey))
}
