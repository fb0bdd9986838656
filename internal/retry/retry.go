// Package retry unifies ad-hoc retry helpers of the shape
// (func, *args, attempts, delay, callback) into a single generic
// Do(ctx, policy, op).
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how many attempts to make and how long to wait between
// them.
type Policy struct {
	Attempts int
	// Delay returns the wait before the given attempt number (0-indexed,
	// counting the delay that follows attempt n before attempt n+1).
	Delay func(attempt int) time.Duration
}

// FixedDelay retries up to attempts times with a constant delay between
// tries (used by the chain client: 20 attempts, 5s fixed).
func FixedDelay(attempts int, delay time.Duration) Policy {
	return Policy{
		Attempts: attempts,
		Delay:    func(int) time.Duration { return delay },
	}
}

// ExpBackoff retries up to attempts times, doubling the delay starting
// from base (used by the content store client: 5 attempts with waits of
// 1s,2s,4s,8s).
func ExpBackoff(attempts int, base time.Duration) Policy {
	return Policy{
		Attempts: attempts,
		Delay: func(attempt int) time.Duration {
			d := base
			for i := 0; i < attempt; i++ {
				d *= 2
			}
			return d
		},
	}
}

// Stop is a sentinel error operations can wrap to abort retrying
// immediately, for non-transient failures (e.g. a contract logic revert)
// that should propagate rather than be retried.
type Stop struct {
	Err error
}

func (s *Stop) Error() string { return s.Err.Error() }
func (s *Stop) Unwrap() error { return s.Err }

// Do runs op up to policy.Attempts times, sleeping policy.Delay(attempt)
// between tries, stopping early on success, on context cancellation, or
// when op returns an error wrapping *Stop.
func Do(ctx context.Context, policy Policy, op func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		var stop *Stop
		if errors.As(err, &stop) {
			return stop.Err
		}

		if attempt == policy.Attempts-1 {
			break
		}

		select {
		case <-time.After(policy.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
