package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Explicit retry behavior for platform calls.
type RetryPolicy struct {
	// total number of platform calls allowed for one action, including the first
	MaxAttempts int
	// delay before the retry following the given (zero-indexed) failed attempt
	Backoff func(attempt int) time.Duration
}

// Returns base * 2^attempt, plus uniform random jitter in [0, 1s).
func ExponentialJitter(base time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		if attempt > 16 {
			attempt = 16
		}
		return base*time.Duration(1<<attempt) + time.Duration(rand.Int64N(int64(time.Second)))
	}
}

func DefaultRetryPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialJitter(base),
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

// Sleeps for d, returning early with ctx.Err() if the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
