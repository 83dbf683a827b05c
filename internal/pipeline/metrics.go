// Package pipeline Prometheus metrics.
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRunsTotal counts pipeline stage runs.
	// Labels: stage (ingest, summarize, index), result (success, error)
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibenavd",
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage runs",
		},
		[]string{"stage", "result"},
	)

	// StageDuration tracks how long stage runs take.
	// Labels: stage (ingest, summarize, index)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vibenavd",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stage runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// LocationsProcessedTotal counts per-location outcomes within a stage.
	// Labels: stage (ingest, summarize, index), result (success, skipped, error)
	LocationsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibenavd",
			Subsystem: "pipeline",
			Name:      "locations_processed_total",
			Help:      "Total number of locations processed per stage",
		},
		[]string{"stage", "result"},
	)

	// ModelCallsTotal counts generation and embedding model calls.
	// Labels: kind (map, reduce, embed), result (success, error)
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibenavd",
			Subsystem: "pipeline",
			Name:      "model_calls_total",
			Help:      "Total number of generative model calls",
		},
		[]string{"kind", "result"},
	)
)
