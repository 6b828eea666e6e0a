package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commentProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "modai_comment_duration_sec",
	Help: "Total duration of comment processing, analysis through audit",
}, []string{"platform"})

var commentProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_comments_processed",
	Help: "Number of comments processed",
}, []string{"platform"})

var commentErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_comment_errors",
	Help: "Number of comments which failed processing (including recovered panics)",
}, []string{"platform"})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_decisions",
	Help: "Number of moderation decisions, by action and triggering rule",
}, []string{"action", "rule"})

var executionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_executions",
	Help: "Number of executed decisions, by action and result",
}, []string{"action", "result"})

var executionAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "modai_execution_attempts",
	Help:    "Platform calls made per destructive action",
	Buckets: []float64{1, 2, 3, 4, 5, 8},
}, []string{"platform"})

var fetchErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_fetch_errors",
	Help: "Number of comment page fetches which failed",
}, []string{"platform"})

var passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modai_pass_duration_sec",
	Help: "Duration of a full moderation pass over tracked posts",
})

var trackedPosts = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modai_tracked_posts",
	Help: "Number of posts currently tracked for continuous moderation",
})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modai_notify_errors",
	Help: "Number of failed notification sends",
})
