package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetrievalFailuresTotal counts retrieval degradations to empty evidence.
	// Labels: cause (embed, query, store)
	RetrievalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibenavd",
			Subsystem: "rag",
			Name:      "retrieval_failures_total",
			Help:      "Total number of retrievals that degraded to empty evidence",
		},
		[]string{"cause"},
	)

	// GenerationFallbacksTotal counts replies replaced by the fixed apology.
	// Labels: engine (conversation, tour)
	GenerationFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibenavd",
			Subsystem: "rag",
			Name:      "generation_fallbacks_total",
			Help:      "Total number of replies substituted with the fallback apology",
		},
		[]string{"engine"},
	)
)
