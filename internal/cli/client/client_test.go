package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
)

// fakeBackend simulates the library API: /api/auth/refresh/ plus a protected /api/books/42/
type fakeBackend struct {
	t *testing.T

	validAccess  string
	validRefresh string
	newAccess    string

	// rejectAll makes the protected endpoint answer 401 even for the refreshed token
	rejectAll bool

	refreshCalls atomic.Int32
	bookCalls    atomic.Int32

	mu          sync.Mutex
	authHeaders []string
	bodies      []string

	// refreshGate blocks refresh responses until closed (nil means no blocking)
	refreshGate chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:            t,
		validAccess:  "access-valid",
		validRefresh: "refresh-valid",
		newAccess:    "access-fresh",
	}
}

func (f *fakeBackend) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshGate != nil {
			<-f.refreshGate
		}

		if r.Header.Get("Authorization") != "" {
			f.t.Errorf("refresh call must not carry an Authorization header")
		}

		var req struct {
			Refresh string `json:"refresh"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh != f.validRefresh {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Token is invalid or expired"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"access": f.newAccess})
	})

	mux.HandleFunc("/api/books/42/", func(w http.ResponseWriter, r *http.Request) {
		f.bookCalls.Add(1)
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()

		header := r.Header.Get("Authorization")
		if f.rejectAll || (header != "Bearer "+f.validAccess && header != "Bearer "+f.newAccess) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Given token not valid for any token type"})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{"id": 42, "title": "Dune"})
	})

	mux.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string][]string{"isbn": {"book with this isbn already exists."}})
	})

	mux.HandleFunc("/api/broken/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	mux.HandleFunc("/api/garbage/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeBackend) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

type book struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func newTestClient(t *testing.T, srv *httptest.Server, access, refresh string) (*Client, *auth.MemoryStore, *[]error) {
	t.Helper()

	tokens := auth.NewMemoryStore()
	if access != "" {
		require.NoError(t, tokens.Set(auth.AccessTokenKey, access))
	}
	if refresh != "" {
		require.NoError(t, tokens.Set(auth.RefreshTokenKey, refresh))
	}

	var expired []error
	c := New(srv.URL+"/api", tokens, WithExpiryHandler(func(err error) {
		expired = append(expired, err)
	}))
	return c, tokens, &expired
}

func TestSend_ValidToken(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, tokens, expired := newTestClient(t, srv, "access-valid", "refresh-valid")

	var got book
	err := c.Do(context.Background(), http.MethodGet, "/books/42/", nil, nil, &got)
	require.NoError(t, err)

	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []string{"Bearer access-valid"}, backend.headers())
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.Empty(t, *expired)

	access, _ := tokens.Get(auth.AccessTokenKey)
	assert.Equal(t, "access-valid", access)
}

func TestSend_NoTokenSendsWithoutAuthorization(t *testing.T) {
	var header string
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		_, present = r.Header["Authorization"]
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, auth.NewMemoryStore())
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/categories/", nil, nil, nil))

	assert.Empty(t, header)
	assert.False(t, present)
}

func TestSend_ExpiredAccessRefreshesAndResends(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, tokens, expired := newTestClient(t, srv, "access-expired", "refresh-valid")

	req := NewRequest(http.MethodGet, "/books/42/")
	resp, err := c.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, req.Retried())
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, int32(2), backend.bookCalls.Load())
	assert.Equal(t, []string{"Bearer access-expired", "Bearer access-fresh"}, backend.headers())
	assert.Empty(t, *expired)

	access, err := tokens.Get(auth.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", access)

	refresh, err := tokens.Get(auth.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "refresh-valid", refresh)
}

func TestSend_ResendsSameBody(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-expired", "refresh-valid")

	err := c.Do(context.Background(), http.MethodPost, "/books/42/", nil, map[string]int{"book": 42}, nil)
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.bodies, 2)
	assert.JSONEq(t, `{"book":42}`, backend.bodies[0])
	assert.Equal(t, backend.bodies[0], backend.bodies[1])
}

func TestSend_RefreshFailureTearsDownSession(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			backend := newFakeBackend(t)
			srv := backend.server()
			c, tokens, expired := newTestClient(t, srv, "access-expired", "refresh-revoked")

			resp, err := c.Send(context.Background(), NewRequest(method, "/books/42/"))
			require.Error(t, err)
			assert.Nil(t, resp)

			var sessionErr *SessionExpiredError
			require.ErrorAs(t, err, &sessionErr)
			assert.ErrorIs(t, err, ErrSessionExpired)
			assert.True(t, IsStatus(err, http.StatusBadRequest), "refresh error should propagate: %v", err)

			assert.Equal(t, int32(1), backend.refreshCalls.Load())
			assert.Equal(t, int32(1), backend.bookCalls.Load())
			require.Len(t, *expired, 1)

			_, err = tokens.Get(auth.AccessTokenKey)
			assert.ErrorIs(t, err, auth.ErrNotFound)
			_, err = tokens.Get(auth.RefreshTokenKey)
			assert.ErrorIs(t, err, auth.ErrNotFound)
		})
	}
}

func TestSend_MissingRefreshTokenIsRefreshFailure(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, tokens, expired := newTestClient(t, srv, "access-expired", "")

	_, err := c.Send(context.Background(), NewRequest(http.MethodGet, "/books/42/"))
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
	require.Len(t, *expired, 1)

	_, err = tokens.Get(auth.AccessTokenKey)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSend_AlreadyRetriedSkipsRefresh(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, tokens, expired := newTestClient(t, srv, "access-expired", "refresh-valid")

	req := NewRequest(http.MethodGet, "/books/42/")
	req.retried = true

	resp, err := c.Send(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.Empty(t, *expired)

	// Tokens are left alone; only a failed refresh tears the session down
	access, _ := tokens.Get(auth.AccessTokenKey)
	assert.Equal(t, "access-expired", access)
}

func TestSend_RefreshedTokenAlsoRejected(t *testing.T) {
	backend := newFakeBackend(t)
	backend.rejectAll = true
	srv := backend.server()
	c, _, expired := newTestClient(t, srv, "access-expired", "refresh-valid")

	resp, err := c.Send(context.Background(), NewRequest(http.MethodGet, "/books/42/"))
	require.Error(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), backend.refreshCalls.Load(), "refresh must happen at most once per request")
	assert.Equal(t, int32(2), backend.bookCalls.Load(), "resend must happen at most once per request")
	assert.Empty(t, *expired)
}

func TestSend_ServerErrorIsTransportError(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-valid", "refresh-valid")

	resp, err := c.Send(context.Background(), NewRequest(http.MethodGet, "/broken/"))
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
}

func TestSend_ClientErrorIsValidationError(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-valid", "refresh-valid")

	err := c.Do(context.Background(), http.MethodPost, "/books/", nil, map[string]string{"isbn": "1"}, nil)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"book with this isbn already exists."}, validationErr.Fields["isbn"])
	assert.Contains(t, err.Error(), "isbn: book with this isbn already exists.")
}

func TestDo_MalformedBodyIsTransportError(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-valid", "refresh-valid")

	var out map[string]any
	err := c.Do(context.Background(), http.MethodGet, "/garbage/", nil, nil, &out)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "decode response", transportErr.Op)
}

func TestSend_NetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tokens := auth.NewMemoryStore()
	c := New(url, tokens)

	_, err := c.Send(context.Background(), NewRequest(http.MethodGet, "/books/"))
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "send request", transportErr.Op)
}

func TestSend_CancelledContext(t *testing.T) {
	backend := newFakeBackend(t)
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-valid", "refresh-valid")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, NewRequest(http.MethodGet, "/books/42/"))
	assert.ErrorIs(t, err, context.Canceled)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestSend_CancelDuringRefreshKeepsSession(t *testing.T) {
	backend := newFakeBackend(t)
	backend.refreshGate = make(chan struct{})
	srv := backend.server()
	c, tokens, expired := newTestClient(t, srv, "access-expired", "refresh-valid")

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, NewRequest(http.MethodGet, "/books/42/"))
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return backend.refreshCalls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	var err error
	select {
	case err = <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after cancellation")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "refresh token", transportErr.Op)
	assert.Empty(t, *expired)

	refresh, err := tokens.Get(auth.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "refresh-valid", refresh)

	// The shared refresh still completes and leaves a usable pair behind
	close(backend.refreshGate)
	require.Eventually(t, func() bool {
		access, err := tokens.Get(auth.AccessTokenKey)
		return err == nil && access == "access-fresh"
	}, 2*time.Second, 5*time.Millisecond)

	refresh, err = tokens.Get(auth.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "refresh-valid", refresh)
	assert.Empty(t, *expired)
}

func TestSend_QueryParameters(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", auth.NewMemoryStore())
	req := NewRequest(http.MethodGet, "books/")
	req.Query = map[string][]string{"search": {"dune"}, "status": {"available"}}
	_, err := c.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "search=dune&status=available", rawQuery)
}

func TestSend_ConcurrentRefreshesAreCoalesced(t *testing.T) {
	backend := newFakeBackend(t)
	backend.refreshGate = make(chan struct{})
	srv := backend.server()
	c, _, _ := newTestClient(t, srv, "access-expired", "refresh-valid")

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background(), NewRequest(http.MethodGet, "/books/42/"))
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return backend.bookCalls.Load() == callers
	}, 2*time.Second, 5*time.Millisecond)
	// Give every caller time to join the in-flight refresh
	time.Sleep(50 * time.Millisecond)
	close(backend.refreshGate)

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, int32(2*callers), backend.bookCalls.Load())
}

func TestObtainTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&creds)

		switch {
		case creds.Username == "librarian" && creds.Password == "secret":
			json.NewEncoder(w).Encode(TokenPair{Access: "a1", Refresh: "r1"})
		case creds.Username == "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "No active account found with the given credentials"})
		}
	}))
	defer srv.Close()

	tokens := auth.NewMemoryStore()
	require.NoError(t, tokens.Set(auth.RefreshTokenKey, "stale"))
	c := New(srv.URL+"/api", tokens)

	pair, err := c.ObtainTokens(context.Background(), "librarian", "secret")
	require.NoError(t, err)
	assert.Equal(t, &TokenPair{Access: "a1", Refresh: "r1"}, pair)

	_, err = c.ObtainTokens(context.Background(), "bad", "creds")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "No active account found")

	_, err = c.ObtainTokens(context.Background(), "down", "x")
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.False(t, errors.As(err, &authErr))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   Outcome
	}{
		{http.StatusOK, OutcomeOK},
		{http.StatusCreated, OutcomeOK},
		{http.StatusNoContent, OutcomeOK},
		{http.StatusUnauthorized, OutcomeUnauthorized},
		{http.StatusForbidden, OutcomeError},
		{http.StatusBadRequest, OutcomeError},
		{http.StatusBadGateway, OutcomeError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&Response{StatusCode: tt.status}))
		})
	}
}

func TestNewHTTPError_Messages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail": "Not found."}`, "Not found."},
		{"error", `{"error": "Proxy request failed"}`, "Proxy request failed"},
		{"fields", `{"title": ["This field is required."], "non_field_errors": ["Book is not available for issue"]}`,
			"Book is not available for issue; title: This field is required."},
		{"plain", "Bad Gateway", "Bad Gateway"},
		{"empty", "", "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newHTTPError(http.StatusBadRequest, []byte(tt.body)).Message)
		})
	}
}
