package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var trackEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_track_events_received",
	Help: "Number of track/untrack events accepted, by source and kind",
}, []string{"source", "kind"})

var trackEventsInvalid = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_track_events_invalid",
	Help: "Number of track/untrack events dropped as unparsable or invalid",
}, []string{"source"})
