// Per-platform fixed-window rate limiting for outbound platform calls (comment fetches and moderation actions).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Returned by Acquire when no slot became free within the limiter's max wait.
type RateLimitExceeded struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (retry after %s)", e.Platform, e.RetryAfter)
}

type Limit struct {
	Requests int
	Window   time.Duration
}

// Mutable per-platform accounting state. Only ever modified by the Limiter, under the budget's mutex.
type Budget struct {
	WindowStart      time.Time
	RequestsInWindow int
	Limit            int
	WindowDuration   time.Duration
	// set from downstream Retry-After signals; takes precedence over local accounting
	BlockedUntil time.Time
}

type budget struct {
	mu sync.Mutex
	b  Budget
}

type Limiter struct {
	limits       map[string]Limit
	defaultLimit Limit
	maxWait      time.Duration
	budgets      *xsync.MapOf[string, *budget]

	// clock, replaceable for tests
	Now func() time.Time
}

type Options struct {
	Limits  map[string]Limit
	Default Limit
	MaxWait time.Duration
}

func NewLimiter(opts Options) *Limiter {
	limits := make(map[string]Limit, len(opts.Limits))
	for k, v := range opts.Limits {
		limits[k] = v
	}
	def := opts.Default
	if def.Requests <= 0 || def.Window <= 0 {
		def = Limit{Requests: 60, Window: time.Minute}
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}
	return &Limiter{
		limits:       limits,
		defaultLimit: def,
		maxWait:      maxWait,
		budgets:      xsync.NewMapOf[string, *budget](),
		Now:          time.Now,
	}
}

func (l *Limiter) limitFor(platform string) Limit {
	if lim, ok := l.limits[platform]; ok {
		return lim
	}
	return l.defaultLimit
}

func (l *Limiter) budgetFor(platform string) *budget {
	b, _ := l.budgets.LoadOrCompute(platform, func() *budget {
		lim := l.limitFor(platform)
		return &budget{
			b: Budget{
				WindowStart:    l.Now(),
				Limit:          lim.Requests,
				WindowDuration: lim.Window,
			},
		}
	})
	return b
}

// Attempts to take a slot at time now. Returns zero on success, otherwise how long until a slot could free up.
func (l *Limiter) reserve(platform string, now time.Time) time.Duration {
	b := l.budgetFor(platform)
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Before(b.b.BlockedUntil) {
		return b.b.BlockedUntil.Sub(now)
	}
	if !now.Before(b.b.WindowStart.Add(b.b.WindowDuration)) {
		b.b.WindowStart = now
		b.b.RequestsInWindow = 0
	}
	if b.b.RequestsInWindow < b.b.Limit {
		b.b.RequestsInWindow++
		return 0
	}
	return b.b.WindowStart.Add(b.b.WindowDuration).Sub(now)
}

// Takes a slot in the platform's current window, waiting (without holding any lock) for window rollover if needed.
//
// If the wait would exceed the configured max wait, returns *RateLimitExceeded without waiting. Returns ctx.Err() if the context is done first.
func (l *Limiter) Acquire(ctx context.Context, platform string) error {
	start := l.Now()
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := l.Now()
		wait := l.reserve(platform, now)
		if wait <= 0 {
			return nil
		}
		if now.Sub(start)+wait > l.maxWait {
			rateLimitExceeded.WithLabelValues(platform).Inc()
			return &RateLimitExceeded{Platform: platform, RetryAfter: wait}
		}
		if !waited {
			rateLimitWaits.WithLabelValues(platform).Inc()
			waited = true
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Records a downstream rate-limit signal. A positive retryAfter marks the window exhausted until now+retryAfter, regardless of local accounting.
func (l *Limiter) RecordResponse(platform string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	b := l.budgetFor(platform)
	b.mu.Lock()
	defer b.mu.Unlock()
	until := l.Now().Add(retryAfter)
	if until.After(b.b.BlockedUntil) {
		b.b.BlockedUntil = until
	}
	b.b.RequestsInWindow = b.b.Limit
}

// Resets accounting for a single platform.
func (l *Limiter) Reset(platform string) {
	l.budgets.Delete(platform)
}

type BudgetStats struct {
	Limit        int           `json:"limit"`
	Used         int           `json:"used"`
	Window       time.Duration `json:"window"`
	WindowStart  time.Time     `json:"window_start"`
	BlockedUntil *time.Time    `json:"blocked_until,omitempty"`
}

// Snapshot of accounting for every platform seen so far.
func (l *Limiter) Stats() map[string]BudgetStats {
	out := map[string]BudgetStats{}
	now := l.Now()
	l.budgets.Range(func(platform string, b *budget) bool {
		b.mu.Lock()
		st := BudgetStats{
			Limit:       b.b.Limit,
			Used:        b.b.RequestsInWindow,
			Window:      b.b.WindowDuration,
			WindowStart: b.b.WindowStart,
		}
		if !now.Before(b.b.WindowStart.Add(b.b.WindowDuration)) {
			st.Used = 0
		}
		if now.Before(b.b.BlockedUntil) {
			until := b.b.BlockedUntil
			st.BlockedUntil = &until
		}
		b.mu.Unlock()
		out[platform] = st
		return true
	})
	return out
}
