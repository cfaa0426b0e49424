// Package metrics holds the Prometheus collectors shared by the pipeline
// and the server. They register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes.
const (
	OutcomeAssigned   = "assigned"
	OutcomeUnassigned = "unassigned"
	OutcomeDuplicate  = "duplicate"
	OutcomeExtracted  = "extracted"
	OutcomeAnalyzed   = "analyzed"
	OutcomeIngested   = "ingested"
)

var (
	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "records_processed_total",
		Help:      "Records that completed a pipeline step, by outcome",
	}, []string{"outcome"})

	RecordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "record_failures_total",
		Help:      "Records whose processing failed, by stage",
	}, []string{"stage"})

	Runs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "runs_total",
		Help:      "Pipeline runs started",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "intake",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full pipeline run",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})
)
