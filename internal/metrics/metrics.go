// Package metrics exposes the Prometheus collectors shared by the run
// coordinator and the model gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptpipe_runs_started_total",
		Help: "Runs created by the coordinator.",
	})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptpipe_runs_completed_total",
		Help: "Runs that reached completed status.",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptpipe_runs_failed_total",
		Help: "Runs that reached failed status.",
	})

	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "promptpipe_step_duration_seconds",
		Help:    "Wall time of one step including the gateway call.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	GatewayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptpipe_gateway_attempts_total",
		Help: "Individual endpoint attempts made by the gateway fallback chain.",
	}, []string{"endpoint", "outcome"})
)
