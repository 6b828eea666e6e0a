package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Destination for persisted entries. Sinks must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

type Summary struct {
	ByAction     map[string]int `json:"by_action"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
}

type ReportSummary struct {
	TotalActions int `json:"total_actions"`
	Successful   int `json:"successful"`
	Failed       int `json:"failed"`
}

// Report summary JSON, in the documented export format.
type Report struct {
	Summary  ReportSummary  `json:"summary"`
	ByAction map[string]int `json:"by_action"`
	Actions  []Record       `json:"actions"`
}

// Append-only, process-wide audit log.
//
// Entries are retained in memory for summaries and reports, and written through to an optional Sink. Sink failures are counted and logged, never returned.
type Log struct {
	Logger *slog.Logger
	Sink   Sink

	mu       sync.Mutex
	entries  []Entry
	byAction map[string]int
	success  int
	failure  int

	sinkFailures atomic.Int64
}

func NewLog(logger *slog.Logger, sink Sink) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		Logger:   logger.With("system", "audit"),
		Sink:     sink,
		byAction: make(map[string]int),
	}
}

func (l *Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Appends an entry, assigning an ID if it doesn't have one. Returns the stored entry.
func (l *Log) Append(ctx context.Context, e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	l.mu.Lock()
	if l.byAction == nil {
		l.byAction = make(map[string]int)
	}
	l.entries = append(l.entries, e)
	l.byAction[e.Action]++
	if e.Success {
		l.success++
	} else {
		l.failure++
	}
	l.mu.Unlock()

	auditEntries.WithLabelValues(e.Action).Inc()

	// sink I/O happens outside the lock
	if l.Sink != nil {
		if err := l.Sink.Write(context.WithoutCancel(ctx), e); err != nil {
			l.sinkFailures.Add(1)
			auditSinkFailures.Inc()
			l.logger().Warn("audit sink write failed",
				"err", err,
				"id", e.ID,
				"comment", e.CommentID,
				"post", e.PostID,
				"action", e.Action,
				"success", e.Success,
			)
		}
	}
	return e
}

// Number of entries which could not be written to the sink.
func (l *Log) SinkFailures() int64 {
	return l.sinkFailures.Load()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Summarize() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAction := make(map[string]int, len(l.byAction))
	for k, v := range l.byAction {
		byAction[k] = v
	}
	return Summary{
		ByAction:     byAction,
		SuccessCount: l.success,
		FailureCount: l.failure,
	}
}

// Copy of all entries, in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Report() Report {
	entries := l.Entries()
	sum := l.Summarize()
	actions := make([]Record, len(entries))
	for i, e := range entries {
		actions[i] = e.Record
	}
	return Report{
		Summary: ReportSummary{
			TotalActions: len(entries),
			Successful:   sum.SuccessCount,
			Failed:       sum.FailureCount,
		},
		ByAction: sum.ByAction,
		Actions:  actions,
	}
}

func (l *Log) Close() error {
	if l.Sink == nil {
		return nil
	}
	return l.Sink.Close()
}
