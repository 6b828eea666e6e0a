package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moderation-ai/modai/automod/cachestore"
	"github.com/moderation-ai/modai/automod/countstore"
	"github.com/moderation-ai/modai/automod/flagstore"
	"github.com/moderation-ai/modai/automod/ratelimit"

	"golang.org/x/sync/singleflight"
)

// Gate for outbound platform calls. Implemented by *ratelimit.Limiter.
type Limiter interface {
	Acquire(ctx context.Context, platform string) error
	RecordResponse(platform string, retryAfter time.Duration)
}

const (
	// counter name for destructive action circuit breaker
	QuotaCounterName = "modai-quota"
	// cachestore name for idempotency records
	OutcomeCacheName = "outcome"

	FlagManualReview = "manual-review"
)

// Applies decisions against platform moderation sinks.
//
// hide and delete are at-most-once per (platform, comment, action) for as long as the idempotency cache retains the outcome. approve and flag never call the platform.
type Executor struct {
	Logger   *slog.Logger
	Sinks    map[Platform]ModerationSink
	Limiter  Limiter
	Retry    RetryPolicy
	Cache    cachestore.CacheStore
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	// max successful destructive actions per platform per day; zero is unlimited
	QuotaDestructiveDay int

	group singleflight.Group
	sleep func(ctx context.Context, d time.Duration) error
}

// Flagstore key for a comment.
func FlagKey(p Platform, commentID string) string {
	return fmt.Sprintf("%s/comment/%s", p, commentID)
}

func idempotencyKey(d Decision) string {
	return fmt.Sprintf("%s/%s/%s", d.Platform, d.CommentID, d.Action)
}

type flightResult struct {
	leader  *int
	outcome Outcome
}

func (ex *Executor) logger() *slog.Logger {
	if ex.Logger == nil {
		return slog.Default()
	}
	return ex.Logger
}

func (ex *Executor) Execute(ctx context.Context, d Decision, c Comment) Outcome {
	var out Outcome
	switch d.Action {
	case ActionApprove:
		out = Outcome{Decision: d, Success: true, Attempts: 1}
	case ActionFlag:
		out = ex.flag(ctx, d, d.RuleTriggered)
	case ActionHide, ActionDelete:
		out = ex.executeDestructive(ctx, d)
	default:
		out = Outcome{
			Decision:     d,
			ErrorKind:    ErrorInternal,
			ErrorMessage: fmt.Sprintf("unknown action: %q", d.Action),
			Attempts:     1,
		}
	}
	result := "success"
	if out.Cached {
		result = "cached"
	} else if !out.Success {
		result = string(out.ErrorKind)
	}
	executionCount.WithLabelValues(string(d.Action), result).Inc()
	if d.Action.Destructive() && !out.Cached {
		executionAttempts.WithLabelValues(string(d.Platform)).Observe(float64(out.Attempts))
	}
	return out
}

// Records a local flag for the comment. Never calls the platform.
func (ex *Executor) flag(ctx context.Context, d Decision, flags ...string) Outcome {
	if ex.Flags != nil {
		if err := ex.Flags.Add(context.WithoutCancel(ctx), FlagKey(d.Platform, d.CommentID), flags); err != nil {
			return Outcome{
				Decision:     d,
				ErrorKind:    ErrorInternal,
				ErrorMessage: fmt.Sprintf("persisting flag: %v", err),
				Attempts:     1,
			}
		}
	}
	return Outcome{Decision: d, Success: true, Attempts: 1}
}

func (ex *Executor) executeDestructive(ctx context.Context, d Decision) Outcome {
	key := idempotencyKey(d)
	if o, ok := ex.cached(ctx, key); ok {
		o.Decision = d
		o.Cached = true
		return o
	}

	// concurrent duplicates share a single execution; only the caller whose function ran sees Cached=false
	token := new(int)
	v, _, _ := ex.group.Do(key, func() (interface{}, error) {
		if o, ok := ex.cached(ctx, key); ok {
			o.Cached = true
			return flightResult{outcome: o}, nil
		}
		o := ex.apply(ctx, d)
		if o.Success {
			ex.storeCached(ctx, key, o)
		}
		return flightResult{leader: token, outcome: o}, nil
	})
	res := v.(flightResult)
	out := res.outcome
	if res.leader != token {
		out.Cached = true
	}
	out.Decision = d
	return out
}

func (ex *Executor) cached(ctx context.Context, key string) (Outcome, bool) {
	if ex.Cache == nil {
		return Outcome{}, false
	}
	raw, err := ex.Cache.Get(context.WithoutCancel(ctx), OutcomeCacheName, key)
	if err != nil {
		ex.logger().Warn("idempotency cache read failed", "key", key, "err", err)
		return Outcome{}, false
	}
	if raw == "" {
		return Outcome{}, false
	}
	var o Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		ex.logger().Warn("idempotency cache entry unparsable", "key", key, "err", err)
		return Outcome{}, false
	}
	return o, true
}

func (ex *Executor) storeCached(ctx context.Context, key string, o Outcome) {
	if ex.Cache == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		ex.logger().Error("failed to marshal outcome for cache", "err", err)
		return
	}
	if err := ex.Cache.Set(context.WithoutCancel(ctx), OutcomeCacheName, key, string(b)); err != nil {
		ex.logger().Warn("idempotency cache write failed", "key", key, "err", err)
	}
}

func (ex *Executor) quotaExceeded(ctx context.Context, p Platform) bool {
	if ex.QuotaDestructiveDay <= 0 || ex.Counters == nil {
		return false
	}
	c, err := ex.Counters.GetCount(ctx, QuotaCounterName, string(p), countstore.PeriodDay)
	if err != nil {
		// fail closed: without a count we can't tell whether the breaker should trip
		ex.logger().Error("reading destructive quota counter", "platform", p, "err", err)
		return true
	}
	return c >= ex.QuotaDestructiveDay
}

func failed(d Decision, kind ErrorKind, err error, attempts int) Outcome {
	if attempts < 1 {
		attempts = 1
	}
	o := Outcome{Decision: d, ErrorKind: kind, Attempts: attempts}
	if err != nil {
		o.ErrorMessage = err.Error()
	}
	return o
}

// Runs the call/retry loop for a destructive action. Caller handles idempotency.
func (ex *Executor) apply(ctx context.Context, d Decision) Outcome {
	logger := ex.logger().With("platform", d.Platform, "comment", d.CommentID, "action", d.Action)

	sink, ok := ex.Sinks[d.Platform]
	if !ok || sink == nil {
		return failed(d, ErrorInternal, fmt.Errorf("no moderation sink for platform %s", d.Platform), 0)
	}

	caps := sink.Capabilities()
	if (d.Action == ActionHide && !caps.SupportsHide) || (d.Action == ActionDelete && !caps.SupportsDelete) {
		logger.Info("action not supported by platform, flagging for manual review")
		o := ex.flag(ctx, d, FlagManualReview, d.RuleTriggered)
		if o.Success {
			o.Annotations = append(o.Annotations, AnnotationManualReview)
		}
		return o
	}

	if ex.quotaExceeded(ctx, d.Platform) {
		logger.Warn("CIRCUIT BREAKER: destructive actions", "quota", ex.QuotaDestructiveDay)
		return failed(d, ErrorQuotaExceeded, fmt.Errorf("daily destructive action quota reached (%d)", ex.QuotaDestructiveDay), 0)
	}

	sleep := ex.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxAttempts := ex.Retry.attempts()
	attempts := 0
	var lastErr *PlatformError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := acquireSlot(ctx, ex.Limiter, d.Platform, sleep, logger); err != nil {
			if attempts == 0 {
				return skipped(d)
			}
			return failed(d, ErrorCancelled, cancelCause(err, lastErr), attempts)
		}

		attempts++
		// in-flight calls are never interrupted by cancellation
		err := ex.call(context.WithoutCancel(ctx), sink, d)
		if err == nil {
			if ex.Counters != nil {
				if err := ex.Counters.Increment(context.WithoutCancel(ctx), QuotaCounterName, string(d.Platform)); err != nil {
					logger.Error("incrementing destructive quota counter", "err", err)
				}
			}
			return Outcome{Decision: d, Success: true, Attempts: attempts}
		}

		perr := asPlatformError(err)
		lastErr = perr
		if !perr.Retryable() {
			logger.Warn("platform action failed permanently", "err", err, "attempts", attempts)
			return failed(d, perr.Kind, perr, attempts)
		}
		if perr.Kind == ErrorRateLimited && perr.RetryAfter > 0 && ex.Limiter != nil {
			ex.Limiter.RecordResponse(string(d.Platform), perr.RetryAfter)
		}
		if attempt == maxAttempts-1 {
			break
		}
		logger.Warn("platform action failed, retrying", "err", err, "attempt", attempts)
		if perr.Kind == ErrorRateLimited && perr.RetryAfter > 0 && ex.Limiter != nil {
			// the wait happens in the next acquire
			continue
		}
		if err := sleep(ctx, ex.Retry.backoff(attempt)); err != nil {
			return failed(d, ErrorCancelled, cancelCause(err, lastErr), attempts)
		}
	}
	logger.Warn("platform action failed, retries exhausted", "err", lastErr, "attempts", attempts)
	return failed(d, lastErr.Kind, lastErr, attempts)
}

// Outcome for a decision which was computed but never executed because of cancellation.
func skipped(d Decision) Outcome {
	return Outcome{Decision: d, ErrorKind: ErrorCancelled, ErrorMessage: SkippedCancelled}
}

func cancelCause(err error, last *PlatformError) error {
	if last != nil {
		return fmt.Errorf("%w (last failure: %v)", err, last)
	}
	return err
}

// Waits for a rate limit slot. RateLimitExceeded just means waiting longer; only context cancellation stops this.
func acquireSlot(ctx context.Context, lim Limiter, p Platform, sleep func(context.Context, time.Duration) error, logger *slog.Logger) error {
	if lim == nil {
		return ctx.Err()
	}
	for {
		err := lim.Acquire(ctx, string(p))
		if err == nil {
			return nil
		}
		var rle *ratelimit.RateLimitExceeded
		if !errors.As(err, &rle) {
			return err
		}
		logger.Info("rate limit wait exceeded, pausing", "platform", p, "retryAfter", rle.RetryAfter)
		if err := sleep(ctx, rle.RetryAfter); err != nil {
			return err
		}
	}
}

// Errors which aren't typed platform errors (eg, network failures) are treated as transient.
func asPlatformError(err error) *PlatformError {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr
	}
	return &PlatformError{Kind: ErrorTransient, Err: err}
}

func (ex *Executor) call(ctx context.Context, sink ModerationSink, d Decision) error {
	switch d.Action {
	case ActionHide:
		return sink.Hide(ctx, d.CommentID)
	case ActionDelete:
		return sink.Delete(ctx, d.CommentID)
	default:
		return &PlatformError{Kind: ErrorInternal, Err: fmt.Errorf("not a platform action: %s", d.Action)}
	}
}
