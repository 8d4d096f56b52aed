package remote

import (
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

// RetryPolicy decides whether a failed call is attempted again.
// attempt starts at 1 for the first failure.
type RetryPolicy interface {
	Backoff(attempt int, err error) (time.Duration, bool)
}

// NoRetry never retries. It is the default: the sync layer is best-effort and
// the next organic trigger is the retry path.
type NoRetry struct{}

// Backoff implements RetryPolicy.
func (NoRetry) Backoff(int, error) (time.Duration, bool) { return 0, false }

// ExponentialBackoff retries transient failures with jittered exponential delays.
type ExponentialBackoff struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// Backoff implements RetryPolicy.
func (b ExponentialBackoff) Backoff(attempt int, err error) (time.Duration, bool) {
	if attempt >= b.MaxAttempts || !Retryable(err) {
		return 0, false
	}
	d := b.Base << (attempt - 1)
	if b.Max > 0 && (d > b.Max || d <= 0) {
		d = b.Max
	}
	if d <= 0 {
		return 0, true
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d/2 + jitter, true
}

// Retryable reports whether err is a transport failure or a 5xx/429 response.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	var ne net.Error
	return errors.As(err, &ne)
}
