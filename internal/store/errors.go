package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no backend URL has been set.
var ErrNotConfigured = errors.New("store: backend URL not configured (run 'rpswatch init --backend <url>')")

// NetworkError is a transport failure before any HTTP status was received.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error contacting %s: %v (check that the URL is correct, the database exists, its rules allow access, and you are online)", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message is the "error" field of a JSON
// body, else the raw body, else the status text.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("store %d: %s", e.Status, e.Message)
}

// ErrorKind returns a stable label for logs.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var netErr *NetworkError
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &httpErr):
		switch {
		case httpErr.Status == 401 || httpErr.Status == 403:
			return "permission_denied"
		case httpErr.Status == 404:
			return "not_found"
		case httpErr.Status >= 500:
			return "server_error"
		default:
			return "http_error"
		}
	default:
		return "unexpected"
	}
}
