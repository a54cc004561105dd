package client

import (
	"net/http"
	"net/url"
)

// Outcome is the classification of a single response
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnauthorized
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// PendingRequest is an outbound call awaiting completion
type PendingRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON encoded once and reused for the resend after a refresh
	Body any

	retried bool
}

// NewRequest creates a request for method and API path (relative to the base URL)
func NewRequest(method, path string) *PendingRequest {
	return &PendingRequest{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
}

// Retried reports whether a refresh-triggered resend already happened for this request
func (r *PendingRequest) Retried() bool {
	return r.retried
}

// hasBody reports whether the method carries a request body
func (r *PendingRequest) hasBody() bool {
	if r.Body == nil {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (r *PendingRequest) setBearer(token string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	if token == "" {
		r.Header.Del("Authorization")
		return
	}
	r.Header.Set("Authorization", "Bearer "+token)
}

// Response is a completed call with its body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Classify decides what the retry state machine does with a response
func Classify(resp *Response) Outcome {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeUnauthorized
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return OutcomeOK
	default:
		return OutcomeError
	}
}
