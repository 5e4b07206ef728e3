package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps connection failures, timeouts and cancelled requests.
	ErrTransport = errors.New("backend transport failure")
	// ErrDecode is returned when a 2xx body cannot be parsed.
	ErrDecode = errors.New("backend response decode failed")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: status %d", e.Op, e.Status)
}

// Unauthorized reports 401 and 403.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
