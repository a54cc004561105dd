package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
)

const (
	UserAgent = "shelf-cli"

	loginPath   = "/auth/login/"
	refreshPath = "/auth/refresh/"

	// 4 MB is far above anything the API returns
	maxBodySize = 4 << 20
)

// ErrNoRefreshToken is the refresh failure reported when nothing is persisted to refresh with
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Client represents an HTTP client for the library API.
// It attaches the persisted access token to every request and recovers from a single
// 401 per request by refreshing the access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.Store
	logger     zerolog.Logger

	mu        sync.RWMutex
	onExpired func(error)

	refreshes singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithExpiryHandler registers the callback run after a terminal refresh failure
func WithExpiryHandler(fn func(error)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// New creates a new API client. baseURL includes the API prefix, e.g. http://localhost:8000/api
func New(baseURL string, tokens auth.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetExpiryHandler replaces the callback run after a terminal refresh failure
func (c *Client) SetExpiryHandler(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

// BaseURL returns the API base URL requests are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send dispatches req with the current access token.
//
// A 401 on a request that was not retried yet triggers exactly one refresh. If the
// refresh succeeds the request is resent once with the new token and that outcome is
// returned as is. If the refresh fails the tokens are cleared, the expiry handler runs
// and a *SessionExpiredError wrapping the refresh error is returned. Cancelling ctx
// during the refresh returns a *TransportError and leaves the tokens in place.
// Non-2xx responses are returned together with a typed error.
func (c *Client) Send(ctx context.Context, req *PendingRequest) (*Response, error) {
	body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	access, err := auth.Lookup(c.tokens, auth.AccessTokenKey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read access token, sending request without it")
	}
	req.setBearer(access)

	resp, err := c.dispatch(ctx, req, body)
	if err != nil {
		return nil, err
	}

	switch Classify(resp) {
	case OutcomeOK:
		return resp, nil
	case OutcomeError:
		return resp, errorFromResponse(resp)
	}

	unauthorized := newHTTPError(resp.StatusCode, resp.Body)
	if req.retried {
		return resp, &SessionExpiredError{Err: unauthorized}
	}
	req.retried = true

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Msg("Access token rejected, refreshing")

	access, err = c.refresh(ctx)
	if err != nil {
		// Cancellation is not a refresh failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TransportError{Op: "refresh token", Err: ctxErr}
		}
		c.expire(err)
		return nil, &SessionExpiredError{Err: err}
	}

	req.setBearer(access)
	resp, err = c.dispatch(ctx, req, body)
	if err != nil {
		return nil, err
	}

	switch Classify(resp) {
	case OutcomeOK:
		return resp, nil
	case OutcomeUnauthorized:
		return resp, &SessionExpiredError{Err: newHTTPError(resp.StatusCode, resp.Body)}
	default:
		return resp, errorFromResponse(resp)
	}
}

// Do sends a request and decodes the JSON response into out (when out is non-nil).
// This is the request surface the library services are built on.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req := NewRequest(method, path)
	req.Query = query
	req.Body = body

	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}

	return decode(resp, out)
}

// TokenPair is the response of the login endpoint
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ObtainTokens exchanges credentials for a token pair.
// It bypasses the refresh protocol: a rejection here always means bad credentials.
func (c *Client) ObtainTokens(ctx context.Context, username, password string) (*TokenPair, error) {
	req := NewRequest(http.MethodPost, loginPath)
	req.Body = map[string]string{
		"username": username,
		"password": password,
	}

	body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.dispatch(ctx, req, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		return nil, errorFromResponse(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthenticationError{Err: newHTTPError(resp.StatusCode, resp.Body)}
	}

	var pair TokenPair
	if err := decode(resp, &pair); err != nil {
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, &TransportError{Op: "decode login response", Err: errors.New("token pair is incomplete")}
	}

	return &pair, nil
}

// refresh mints a new access token. Concurrent refreshes for the same refresh token
// share one call to the backend.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := auth.Lookup(c.tokens, auth.RefreshTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	ch := c.refreshes.DoChan(refreshToken, func() (any, error) {
		// The shared call must not die with whichever caller started it
		return c.doRefresh(context.WithoutCancel(ctx), refreshToken)
	})

	select {
	case <-ctx.Done():
		return "", &TransportError{Op: "refresh token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	req := NewRequest(http.MethodPost, refreshPath)
	req.Body = map[string]string{"refresh": refreshToken}

	body, err := encodeBody(req)
	if err != nil {
		return "", err
	}

	resp, err := c.dispatch(ctx, req, body)
	if err != nil {
		return "", err
	}
	if Classify(resp) != OutcomeOK {
		return "", newHTTPError(resp.StatusCode, resp.Body)
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", &TransportError{Op: "decode refresh response", Err: errors.New("no access token in response")}
	}

	if err := c.tokens.Set(auth.AccessTokenKey, out.Access); err != nil {
		return "", fmt.Errorf("failed to persist refreshed access token: %w", err)
	}
	// Backends that rotate refresh tokens hand out a new one with every refresh
	if out.Refresh != "" {
		if err := c.tokens.Set(auth.RefreshTokenKey, out.Refresh); err != nil {
			return "", fmt.Errorf("failed to persist rotated refresh token: %w", err)
		}
	}

	c.logger.Info().Msg("Access token refreshed")
	return out.Access, nil
}

// expire tears down the persisted credentials and hands control back to the session owner
func (c *Client) expire(cause error) {
	c.logger.Warn().Err(cause).Msg("Token refresh failed, clearing session")

	if err := auth.ClearAll(c.tokens); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear tokens")
	}

	c.mu.RLock()
	fn := c.onExpired
	c.mu.RUnlock()
	if fn != nil {
		fn(cause)
	}
}

// dispatch performs one HTTP round trip. Only transport failures are returned as errors.
func (c *Client) dispatch(ctx context.Context, req *PendingRequest, body []byte) (*Response, error) {
	target := c.resolve(req)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: "create request", Err: err}
	}

	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "send request", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Bool("retried", req.retried).
		Msg("API request")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(req *PendingRequest) string {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}
	return target
}

func encodeBody(req *PendingRequest) ([]byte, error) {
	if !req.hasBody() {
		return nil, nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func decode(resp *Response, out any) error {
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}
