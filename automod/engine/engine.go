package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moderation-ai/modai/automod/audit"
	"github.com/moderation-ai/modai/automod/countstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Produces one signal per configured analyzer. Implemented by *analyzer.Set.
type Analyzer interface {
	Analyze(c Comment) []Signal
}

// Adapter to use an ordinary function as an Analyzer.
type AnalyzerFunc func(c Comment) []Signal

func (f AnalyzerFunc) Analyze(c Comment) []Signal { return f(c) }

const (
	// counter of non-approved decisions, keyed by platform and author
	AuthorViolationsCounter = "modai-author-violations"
	// distinct counter of authors with non-approved comments, bucketed by post
	PostOffendersCounter = "modai-post-offenders"

	SkippedCancelled  = "skipped-cancelled"
	RulePipelineError = "pipeline-error"
)

// runtime for running moderation passes over tracked posts: fetching, analysis, rule evaluation, execution and audit.
//
// Analyzer, Executor and Audit must be set. Other fields are optional.
type Engine struct {
	Logger   *slog.Logger
	Analyzer Analyzer
	Policy   Policy
	Sources  map[Platform]CommentSource
	// gates comment fetches; the executor holds its own reference for platform actions
	Limiter  Limiter
	Executor *Executor
	Audit    *audit.Log
	Counters countstore.CountStore
	Notifier Notifier
	// retry policy for transient comment fetch failures
	FetchRetry RetryPolicy
	// max comments fetched per post per pass; zero is unlimited
	MaxComments    int
	Workers        int
	InterPostDelay time.Duration
	PollInterval   time.Duration
	// clock for decision timestamps (defaults to time.Now)
	Now func() time.Time

	sleep    func(ctx context.Context, d time.Duration) error
	lastPass atomic.Pointer[PassSummary]
}

type TrackedPost struct {
	Platform Platform `json:"platform"`
	PostID   string   `json:"post_id"`
	Title    string   `json:"title,omitempty"`
}

func (tp TrackedPost) Key() string {
	return fmt.Sprintf("%s/%s", tp.Platform, tp.PostID)
}

// Tally of outcomes for a single post.
type PostResult struct {
	Post       TrackedPost `json:"post"`
	Comments   int         `json:"comments"`
	Approved   int         `json:"approved"`
	Flagged    int         `json:"flagged"`
	Hidden     int         `json:"hidden"`
	Deleted    int         `json:"deleted"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	FetchError string      `json:"fetch_error,omitempty"`
	Outcomes   []Outcome   `json:"-"`
}

func (r *PostResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Skipped():
		r.Skipped++
	case !o.Success:
		r.Failed++
	case o.HasAnnotation(AnnotationManualReview):
		// nothing happened on the platform; a human has to look
		r.Flagged++
	case o.Decision.Action == ActionApprove:
		r.Approved++
	case o.Decision.Action == ActionFlag:
		r.Flagged++
	case o.Decision.Action == ActionHide:
		r.Hidden++
	case o.Decision.Action == ActionDelete:
		r.Deleted++
	}
}

// Summary of a pass over one or more posts.
type PassSummary struct {
	Articles      int          `json:"articles"`
	TotalComments int          `json:"total_comments"`
	Approved      int          `json:"approved"`
	Flagged       int          `json:"flagged"`
	Hidden        int          `json:"hidden"`
	Deleted       int          `json:"deleted"`
	Failed        int          `json:"failed"`
	Skipped       int          `json:"skipped"`
	FetchErrors   int          `json:"fetch_errors"`
	Cancelled     bool         `json:"cancelled,omitempty"`
	Duration      string       `json:"duration"`
	Posts         []PostResult `json:"posts"`
}

func (s *PassSummary) add(r PostResult) {
	s.TotalComments += r.Comments
	s.Approved += r.Approved
	s.Flagged += r.Flagged
	s.Hidden += r.Hidden
	s.Deleted += r.Deleted
	s.Failed += r.Failed
	s.Skipped += r.Skipped
	if r.FetchError != "" {
		s.FetchErrors++
	}
	s.Posts = append(s.Posts, r)
}

func (eng *Engine) logger() *slog.Logger {
	if eng.Logger == nil {
		return slog.Default()
	}
	return eng.Logger
}

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

func (eng *Engine) workers() int {
	if eng.Workers < 1 {
		return 1
	}
	return eng.Workers
}

func (eng *Engine) sleeper() func(context.Context, time.Duration) error {
	if eng.sleep != nil {
		return eng.sleep
	}
	return sleepCtx
}

// Runs a pass over each post in order, pausing InterPostDelay between posts.
//
// Once ctx is done, remaining posts are not fetched. The summary always counts every requested post as an article.
func (eng *Engine) RunPass(ctx context.Context, posts []TrackedPost) PassSummary {
	ctx, span := otel.Tracer("modai").Start(ctx, "RunPass")
	defer span.End()
	span.SetAttributes(attribute.Int("posts", len(posts)))

	start := time.Now()
	sum := PassSummary{Articles: len(posts), Posts: []PostResult{}}

	var pacer *rate.Limiter
	if eng.InterPostDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(eng.InterPostDelay), 1)
	}
	for _, post := range posts {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				sum.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		sum.add(eng.ModeratePost(ctx, post))
	}

	elapsed := time.Since(start)
	passDuration.Observe(elapsed.Seconds())
	sum.Duration = elapsed.Round(time.Millisecond).String()
	span.SetAttributes(
		attribute.Int("comments", sum.TotalComments),
		attribute.Int("failed", sum.Failed),
		attribute.Bool("cancelled", sum.Cancelled),
	)
	eng.logger().Info("moderation pass complete",
		"articles", sum.Articles,
		"comments", sum.TotalComments,
		"approved", sum.Approved,
		"flagged", sum.Flagged,
		"hidden", sum.Hidden,
		"deleted", sum.Deleted,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"fetchErrors", sum.FetchErrors,
		"duration", elapsed,
	)
	return sum
}

// Fetches every comment page for the post (up to MaxComments) and processes comments concurrently on the worker pool.
//
// Every fetched comment produces exactly one outcome, and one audit entry.
func (eng *Engine) ModeratePost(ctx context.Context, post TrackedPost) PostResult {
	ctx, span := otel.Tracer("modai").Start(ctx, "ModeratePost", trace.WithAttributes(
		attribute.String("platform", string(post.Platform)),
		attribute.String("post", post.PostID),
	))
	defer span.End()
	logger := eng.logger().With("platform", post.Platform, "post", post.PostID)

	res := PostResult{Post: post}
	src, ok := eng.Sources[post.Platform]
	if !ok || src == nil {
		res.FetchError = fmt.Sprintf("no comment source for platform %s", post.Platform)
		logger.Error("can't moderate post", "err", res.FetchError)
		return res
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(eng.workers())

	cursor := ""
	fetched := 0
	for {
		if eng.MaxComments > 0 && fetched >= eng.MaxComments {
			break
		}
		page, err := eng.fetchPage(ctx, src, post, cursor)
		if err != nil {
			if ctx.Err() == nil {
				fetchErrorCount.WithLabelValues(string(post.Platform)).Inc()
				res.FetchError = err.Error()
				span.RecordError(err)
				span.SetStatus(codes.Error, "comment fetch failed")
				logger.Warn("failed to fetch comments", "err", err, "cursor", cursor)
			}
			break
		}
		for _, c := range page.Comments {
			if eng.MaxComments > 0 && fetched >= eng.MaxComments {
				break
			}
			fetched++
			if c.Platform == "" {
				c.Platform = post.Platform
			}
			if c.PostID == "" {
				c.PostID = post.PostID
			}
			g.Go(func() error {
				o := eng.ProcessComment(ctx, c)
				mu.Lock()
				res.add(o)
				mu.Unlock()
				return nil
			})
		}
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	g.Wait()

	res.Comments = fetched
	span.SetAttributes(attribute.Int("comments", fetched))
	logger.Info("post moderated",
		"comments", res.Comments,
		"hidden", res.Hidden,
		"deleted", res.Deleted,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res
}

// Fetches one page, gated by the rate limiter, retrying transient failures.
func (eng *Engine) fetchPage(ctx context.Context, src CommentSource, post TrackedPost, cursor string) (*Page, error) {
	sleep := eng.sleeper()
	maxAttempts := eng.FetchRetry.attempts()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := acquireSlot(ctx, eng.Limiter, post.Platform, sleep, eng.logger()); err != nil {
			return nil, err
		}
		page, err := src.FetchComments(ctx, post.PostID, cursor)
		if err == nil {
			if page == nil {
				return &Page{}, nil
			}
			return page, nil
		}
		lastErr = err
		perr := asPlatformError(err)
		if !perr.Retryable() || ctx.Err() != nil {
			return nil, err
		}
		if perr.Kind == ErrorRateLimited && perr.RetryAfter > 0 && eng.Limiter != nil {
			eng.Limiter.RecordResponse(string(post.Platform), perr.RetryAfter)
			continue
		}
		if attempt < maxAttempts-1 {
			if err := sleep(ctx, eng.FetchRetry.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("fetching comments (%d attempts): %w", maxAttempts, lastErr)
}

// Runs a single comment through the pipeline: analyze, aggregate, evaluate, execute, then audit. Never drops a comment: panics and errors become failed outcomes.
func (eng *Engine) ProcessComment(ctx context.Context, c Comment) (out Outcome) {
	start := time.Now()
	logger := eng.logger().With("platform", c.Platform, "post", c.PostID, "comment", c.ID)
	d := Decision{
		CommentID: c.ID,
		PostID:    c.PostID,
		Platform:  c.Platform,
		Action:    ActionFlag,
	}
	recorded := false

	// similar to an HTTP server, we want to recover any panics from analyzer or rule execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("moderation pipeline exception", "err", r)
			commentErrorCount.WithLabelValues(string(c.Platform)).Inc()
			if recorded {
				return
			}
			if d.RuleTriggered == "" {
				d.RuleTriggered = RulePipelineError
			}
			if d.Timestamp.IsZero() {
				d.Timestamp = eng.now().UTC()
			}
			out = Outcome{
				Decision:     d,
				ErrorKind:    ErrorInternal,
				ErrorMessage: fmt.Sprintf("pipeline panic: %v", r),
				Attempts:     1,
			}
			eng.record(ctx, out)
		}
	}()

	signals := eng.Analyzer.Analyze(c)
	sev, aux := Aggregate(signals)
	eval := eng.Policy.Evaluate(sev, aux, c.IsOwnComment, signals)
	d.Action = eval.Action
	d.SeverityObserved = eval.SeverityObserved
	d.RuleTriggered = eval.RuleTriggered
	d.Reasoning = eval.Reasoning
	d.Timestamp = eng.now().UTC()
	decisionCount.WithLabelValues(string(d.Action), d.RuleTriggered).Inc()

	if ctx.Err() != nil {
		out = skipped(d)
	} else {
		out = eng.Executor.Execute(ctx, d, c)
	}
	eng.record(ctx, out)
	recorded = true

	logger.Info("canonical-comment-line",
		"action", d.Action,
		"severity", d.SeverityObserved,
		"rule", d.RuleTriggered,
		"reasoning", d.Reasoning,
		"success", out.Success,
		"errorKind", out.ErrorKind,
		"attempts", out.Attempts,
		"cached", out.Cached,
		"annotations", out.Annotations,
	)

	if d.Action != ActionApprove && !out.Skipped() && eng.Counters != nil && c.AuthorID != "" {
		key := fmt.Sprintf("%s/%s", c.Platform, c.AuthorID)
		if err := eng.Counters.Increment(context.WithoutCancel(ctx), AuthorViolationsCounter, key); err != nil {
			logger.Error("failed to increment author violation counter", "err", err)
		}
		post := TrackedPost{Platform: c.Platform, PostID: c.PostID}
		if err := eng.Counters.IncrementDistinct(context.WithoutCancel(ctx), PostOffendersCounter, post.Key(), c.AuthorID); err != nil {
			logger.Error("failed to increment post offender counter", "err", err)
		}
	}

	if eng.Notifier != nil && Notable(out) {
		if err := eng.Notifier.SendOutcome(context.WithoutCancel(ctx), c, out); err != nil {
			notifyErrorCount.Inc()
			logger.Error("failed to send notification", "err", err)
		}
	}

	if !out.Success && !out.Skipped() {
		commentErrorCount.WithLabelValues(string(c.Platform)).Inc()
	}
	commentProcessCount.WithLabelValues(string(c.Platform)).Inc()
	commentProcessDuration.WithLabelValues(string(c.Platform)).Observe(time.Since(start).Seconds())
	return out
}

// Appends the outcome to the audit log.
func (eng *Engine) record(ctx context.Context, o Outcome) {
	if eng.Audit == nil {
		return
	}
	eng.Audit.Append(ctx, AuditEntry(o))
}

// Converts an outcome to its audit log representation.
func AuditEntry(o Outcome) audit.Entry {
	d := o.Decision
	e := audit.Entry{
		Record: audit.Record{
			CommentID:     d.CommentID,
			PostID:        d.PostID,
			Action:        string(d.Action),
			RuleTriggered: d.RuleTriggered,
			Timestamp:     d.Timestamp,
			Success:       o.Success,
		},
		Platform:    string(d.Platform),
		Reasoning:   d.Reasoning,
		Attempts:    o.Attempts,
		ErrorKind:   string(o.ErrorKind),
		Annotations: o.Annotations,
	}
	if d.SeverityObserved.Valid() {
		e.Severity = d.SeverityObserved.String()
	}
	if o.ErrorMessage != "" {
		e.ErrorMessage = audit.StringPtr(o.ErrorMessage)
	}
	return e
}
