// Package metrics exposes the engine's Prometheus collectors. They are
// registered on the default registry and served from the /metrics endpoint
// of the healthcheck server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed workflow runs by final state.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_runs_total",
		Help: "Total number of completed workflow runs by final state",
	}, []string{"state"})

	// ActiveRuns tracks currently executing workflow runs.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conveyor_active_runs",
		Help: "Number of workflow runs currently executing",
	})

	// NodesTotal counts executed graph nodes by kind and outcome.
	NodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_nodes_total",
		Help: "Total number of executed graph nodes by kind and outcome",
	}, []string{"kind", "outcome"})

	// JobDuration observes wall-clock duration of job instances in seconds.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conveyor_job_duration_seconds",
		Help:    "Wall-clock duration of job instances in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)
