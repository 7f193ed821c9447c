package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetch engine.
var (
	// ErrRetryExhausted is returned when all retry attempts are spent.
	// It wraps the last transport or HTTP error.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrBadBody is returned when a success response carries a body that
	// is not valid JSON. Decode defects are not transient, so this error
	// is never retried.
	ErrBadBody = errors.New("response body is not valid JSON")

	// ErrContextCancelled is returned when the context is cancelled
	// during a retry backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// StatusError reports a completed request whose HTTP status was outside
// the success range.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status %s fetching %s", e.Status, e.URL)
	}
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}
