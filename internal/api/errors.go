package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSlowDown is returned when the local submit limiter rejects a post before
// any request is sent.
var ErrSlowDown = errors.New("posting too fast, wait a moment")

// Error is a non-success response from the backend. Detail carries the
// server's structured error field when one was present, otherwise a generic
// fallback, and is safe to show to the user verbatim.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// AuthDenied reports whether the backend refused the credentials. Both 401
// and 403 count as denial; the distinction is deliberately not surfaced.
func (e *Error) AuthDenied() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsAuthDenied reports whether err is an authorization denial from the
// backend. Transport failures are not denials.
func IsAuthDenied(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.AuthDenied()
}

// Message extracts a short user-facing message from any error produced by
// this package, falling back to the given default for transport failures.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if errors.Is(err, ErrSlowDown) {
		return ErrSlowDown.Error()
	}
	return fallback
}
