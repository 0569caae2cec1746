package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies completion failures after retries are exhausted.
type ErrorKind string

const (
	// KindRateLimited means the backend kept returning 429 past the retry budget.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimedOut means requests kept timing out past the retry budget.
	KindTimedOut ErrorKind = "timed_out"
	// KindModelUnavailable means hard provider errors persisted even after
	// switching to the fallback model (when one is configured).
	KindModelUnavailable ErrorKind = "model_unavailable"
)

// Error is the typed failure returned by the client once its retry policy
// is exhausted. Callers map Kind to a fixed user-facing apology string.
type Error struct {
	Kind ErrorKind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, err: err}
}

// KindOf extracts the error kind, or "" for non-client errors.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// ErrVisionUnavailable signals that the vision path is disabled or failed;
// callers substitute a textual placeholder for image turns instead of failing.
var ErrVisionUnavailable = errors.New("llm: vision not available")

// HTTPError is a non-2xx response from the backend, carrying enough to
// classify it for the retry policy.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter int // seconds, from the Retry-After header (0 = absent)
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
