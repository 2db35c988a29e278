// Package metrics exposes Prometheus instrumentation for the investigation
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStarted counts investigations by admission path.
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgraph_runs_started_total",
		Help: "Investigations started, by admission path (live or cached).",
	}, []string{"path"})

	// RunsCompleted counts terminal outcomes.
	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgraph_runs_completed_total",
		Help: "Investigations completed, by outcome.",
	}, []string{"outcome"})

	// RunDuration observes wall time per investigation.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapgraph_run_duration_seconds",
		Help:    "Investigation duration from admission to terminal event.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// OracleCalls counts external oracle calls by oracle and status.
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgraph_oracle_calls_total",
		Help: "External oracle calls, by oracle and status.",
	}, []string{"oracle", "status"})

	// RateLimited counts rejected admissions.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapgraph_rate_limited_total",
		Help: "Investigation requests denied by the rate limiter.",
	})

	// Subscribers gauges attached event-stream subscribers by transport.
	Subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "snapgraph_stream_subscribers",
		Help: "Attached event-stream subscribers, by transport.",
	}, []string{"transport"})

	// EdgesUpserted counts verified co-appearances written to the graph.
	EdgesUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapgraph_edges_upserted_total",
		Help: "Verified co-appearance edges written to the graph store.",
	})
)
