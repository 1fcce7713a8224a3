package contents

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for repository operations. Every *APIError unwraps to one
// of these so callers can branch with errors.Is.
var (
	ErrMissingCredential = errors.New("missing access token")
	ErrUnauthorized      = errors.New("access token rejected")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("update precondition failed")
	ErrNetwork           = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError describes a non-2xx response from the contents API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Kind    error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("github %d: %s %s: %s", e.Status, e.Method, e.Path, msg)
}

// Unwrap returns the sentinel kind of the failure.
func (e *APIError) Unwrap() error {
	return e.Kind
}

// classify maps a response status (and, for 422, the message) onto an error kind.
func classify(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		// GitHub answers a missing or stale sha with 422 "sha wasn't supplied"
		// or "does not match".
		lower := strings.ToLower(message)
		if strings.Contains(lower, "sha") {
			return ErrConflict
		}
		return ErrMalformedResponse
	default:
		return ErrMalformedResponse
	}
}
