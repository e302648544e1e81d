package scraper

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is the sentinel matched by errors.Is for any
// CircuitOpenError. Callers should skip the URL for the current cycle
// rather than treat it as a data error.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError reports that the per-domain circuit breaker is
// currently blocking requests to a domain.
type CircuitOpenError struct {
	Domain    string
	OpenUntil time.Time
}

func (e *CircuitOpenError) Error() string {
	if e.OpenUntil.IsZero() {
		return fmt.Sprintf("circuit open for %s", e.Domain)
	}
	return fmt.Sprintf("circuit open for %s until %s", e.Domain, e.OpenUntil.Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrCircuitOpen) match.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// Typed failure reasons surfaced by the fetch layer.
const (
	ReasonForbidden  = "access forbidden"
	ReasonNotFound   = "page not found"
	ReasonTimeout    = "request timed out"
	ReasonSSL        = "ssl verification failed"
	ReasonConnection = "connection error"
	ReasonMaxRetries = "max retries exceeded"
	ReasonInvalidURL = "invalid url"
)

// FetchError describes a fetch that definitively failed. Reason is one of
// the Reason* constants or an "http error: NNN" string for unexpected
// status codes.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

// Unwrap exposes the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPErrorReason formats the failure reason for an unexpected status code.
func HTTPErrorReason(status int) string {
	return fmt.Sprintf("http error: %d", status)
}
