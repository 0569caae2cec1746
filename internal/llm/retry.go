package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// maxBackoff caps the delay between attempts.
const maxBackoff = 30 * time.Second

// failureClass drives the retry policy: transient failures back off and
// retry, hard failures trigger the fallback-model switch first.
type failureClass int

const (
	failRateLimited failureClass = iota
	failTimeout
	failHard
)

// classify maps a request error onto the retry policy.
func classify(err error) failureClass {
	var he *HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Status == http.StatusTooManyRequests:
			return failRateLimited
		case he.Status == http.StatusRequestTimeout || he.Status == http.StatusGatewayTimeout:
			return failTimeout
		default:
			return failHard
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return failTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failTimeout
	}

	return failHard
}

func (c failureClass) kind() ErrorKind {
	switch c {
	case failRateLimited:
		return KindRateLimited
	case failTimeout:
		return KindTimedOut
	default:
		return KindModelUnavailable
	}
}

// backoffDelay returns the wait before retry number attempt (0-based):
// 2^attempt seconds plus up to one second of jitter, capped at maxBackoff.
// A server-provided Retry-After wins when it is longer.
func backoffDelay(attempt int, err error) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	delay := base + jitter
	if delay > maxBackoff {
		delay = maxBackoff
	}

	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > 0 {
		if ra := time.Duration(he.RetryAfter) * time.Second; ra > delay && ra <= maxBackoff {
			delay = ra
		}
	}
	return delay
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header value in seconds form.
func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return 0
}
