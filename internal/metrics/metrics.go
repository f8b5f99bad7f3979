// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expenselens_scans_started_total",
		Help: "Total number of receipt scans started.",
	})

	ScansCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expenselens_scans_completed_total",
		Help: "Total number of scans that produced a record, labelled by extraction source.",
	}, []string{"source"})

	ScansFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expenselens_scans_failed_total",
		Help: "Total number of scans aborted before a record was produced (input errors).",
	})

	StructuredFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expenselens_structured_failures_total",
		Help: "Total number of structured-extraction failures, labelled by failure kind.",
	}, []string{"kind"})

	RecordsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expenselens_records_flagged_total",
		Help: "Total number of records routed to human review.",
	})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "expenselens_extraction_duration_seconds",
		Help:    "End-to-end duration of one receipt scan.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)
