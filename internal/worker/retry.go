// Package worker provides bounded retry with exponential backoff.
package worker

import (
	"context"
	"math"
	"time"
)

// DefaultRetryDelay is used when InitialDelay is unset. Admission retries
// wait on lock contention, so the base delay is short.
const DefaultRetryDelay = 50 * time.Millisecond

// RetryPolicy is a bounded exponential backoff. MaxRetries counts attempts,
// not re-attempts.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay is the pause after the given failed attempt (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base, factor := r.InitialDelay, r.BackoffFactor
	if base <= 0 {
		base = DefaultRetryDelay
	}
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(max(attempt, 1)-1)))
	switch {
	case d <= 0:
		return base
	case r.MaxDelay > 0 && d > r.MaxDelay:
		return r.MaxDelay
	}
	return d
}

// Do runs fn up to MaxRetries times (at least once) while retryable reports
// true for its error, sleeping NextDelay between attempts. The last error is
// returned unchanged.
func (r RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := r.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(r.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
