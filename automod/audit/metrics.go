package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_audit_entries_total",
	Help: "Number of audit log entries appended, by action",
}, []string{"action"})

var auditSinkFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modai_audit_sink_failures_total",
	Help: "Number of audit entries which failed to persist to the configured sink",
})
