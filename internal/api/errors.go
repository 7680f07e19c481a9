package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable wraps transport failures: the backend could not be reached
// or the call timed out.
var ErrUnavailable = errors.New("api: backend unavailable")

// Error is a non-2xx answer from the backend. Message is the backend's own
// human-readable message when it sent one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message returns the text to show the user for err, or fallback when err
// carries nothing user-facing.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
