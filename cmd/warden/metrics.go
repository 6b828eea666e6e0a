package main

import (
	"net/http"

	"github.com/carlmjohnson/versioninfo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "warden_build_info",
	Help: "Always 1, labeled with the running version",
}, []string{"version"})

var trackedFromFlags = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_initial_tracked_posts",
	Help: "Number of posts tracked at startup, from flags",
})

func RunMetrics(listen string) error {
	buildInfo.WithLabelValues(versioninfo.Short()).Set(1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, mux)
}
