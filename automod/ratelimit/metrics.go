package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_ratelimit_waits_total",
	Help: "Number of acquires which had to wait for window capacity",
}, []string{"platform"})

var rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_ratelimit_exceeded_total",
	Help: "Number of acquires which gave up after the max wait",
}, []string{"platform"})
