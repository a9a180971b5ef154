package retry

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-bridge/pkg/errors"
)

/*
ShouldRetry is the decision function behind every attempt loop.  Only
transport-level failures are worth another attempt; protocol violations,
server-reported errors, and unknown tasks propagate immediately.  attempt is
0-indexed, so the last permitted attempt is maxAttempts-1.
*/
func ShouldRetry(err error, attempt int, maxAttempts int) bool {
	if err == nil {
		return false
	}

	if attempt+1 >= maxAttempts {
		return false
	}

	return errors.IsTransport(err)
}

/*
Do executes fn with retry logic, backing off between attempts per cfg.  It
respects context cancellation during backoff waits and returns the last error
if all attempts fail.
*/
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()

		if err == nil {
			return result, nil
		}

		lastErr = err

		if !ShouldRetry(err, attempt, cfg.MaxAttempts) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return zero, lastErr
}
