package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSessionExpired matches any *SessionExpiredError via errors.Is
var ErrSessionExpired = errors.New("session expired")

// HTTPError represents a non-2xx HTTP response from the API
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// AuthenticationError means the authentication service rejected the credentials
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// SessionExpiredError is returned when a 401 could not be recovered by a token refresh.
// Err is either the refresh failure or the final 401.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %v", e.Err)
}

func (e *SessionExpiredError) Unwrap() error { return e.Err }

func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

// TransportError covers network failures, 5xx responses and bodies that cannot be decoded
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is a 4xx response other than 401. Fields carries per-field messages
// when the backend reported them.
type ValidationError struct {
	Err    *HTTPError
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// newHTTPError extracts a human readable message from an error body.
// The backend answers with {"detail": "..."}, {"error": "..."} or a map of field errors.
func newHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: status, Body: body}

	var envelope struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		switch {
		case envelope.Detail != "":
			httpErr.Message = envelope.Detail
			return httpErr
		case envelope.Error != "":
			httpErr.Message = envelope.Error
			return httpErr
		}
	}

	if fields := fieldErrors(body); len(fields) > 0 {
		httpErr.Message = formatFieldErrors(fields)
		return httpErr
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "empty response"
	}
	httpErr.Message = msg
	return httpErr
}

// fieldErrors decodes a DRF style {"field": ["msg", ...]} body
func fieldErrors(body []byte) map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	fields := make(map[string][]string)
	for name, value := range raw {
		if name == "detail" || name == "error" {
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[name] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			fields[name] = []string{single}
		}
	}
	return fields
}

func formatFieldErrors(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		msg := strings.Join(fields[name], " ")
		if name == "non_field_errors" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, msg))
	}
	return strings.Join(parts, "; ")
}

// errorFromResponse maps a failed, non-401 response onto the error taxonomy
func errorFromResponse(resp *Response) error {
	httpErr := newHTTPError(resp.StatusCode, resp.Body)
	if resp.StatusCode >= 500 {
		return &TransportError{Op: "server error", Err: httpErr}
	}
	return &ValidationError{Err: httpErr, Fields: fieldErrors(resp.Body)}
}
