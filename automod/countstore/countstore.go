// Named counters for moderation bookkeeping, bucketed by UTC hour, UTC day, and all-time.
//
// The executor's destructive quota reads the day bucket; the orchestrator keeps per-author violation and per-post distinct offender counts.
package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// Every increment touches one bucket per period.
var Periods = []string{PeriodTotal, PeriodDay, PeriodHour}

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	// distinct values seen within a bucket, eg authors per post
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

// Storage key for a counter in the bucket of period containing now. Unknown periods fall back to all-time.
func bucketKey(name, val, period string, now time.Time) string {
	now = now.UTC()
	switch period {
	case PeriodTotal:
		return name + "/" + val
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.DateOnly))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format("2006-01-02T15"))
	default:
		slog.Warn("unknown counter period, using all-time bucket", "period", period, "counter", name)
		return name + "/" + val
	}
}
