package mailapi

import (
	"errors"
	"fmt"
)

// AuthError indicates that the service rejected the session token.
// It is returned when a 401 response is received.
type AuthError struct {
	Method string
	Path   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session token rejected (401) on %s %s", e.Method, e.Path)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body,
	)
}

// IsServerError reports whether err carries a 5xx response.
func IsServerError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode >= 500
}
