// Package observability exposes Prometheus metrics for the pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessonpulse_events_received_total",
		Help: "Total number of events received across all ingress adapters.",
	})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonpulse_events_rejected_total",
		Help: "Total number of events rejected, labelled by reason.",
	}, []string{"reason"})

	BatchesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessonpulse_batches_appended_total",
		Help: "Total number of batches durably appended to the journal.",
	})

	JournalSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lessonpulse_journal_size_bytes",
		Help: "Current un-reclaimed journal size in bytes.",
	})

	SegmentsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessonpulse_segments_reclaimed_total",
		Help: "Total number of journal segments removed by the reclaimer.",
	})

	PublishAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessonpulse_publish_attempts_total",
		Help: "Total number of downstream publish attempts.",
	})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonpulse_publish_failures_total",
		Help: "Total number of publish failures, labelled by kind (transient, permanent).",
	}, []string{"kind"})

	RecordsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessonpulse_records_published_total",
		Help: "Total number of records accepted by the downstream log.",
	})

	PublishLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lessonpulse_publish_latency_seconds",
		Help:    "Latency of downstream publish calls.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	DeadLetterRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lessonpulse_deadletter_records_total",
		Help: "Total number of records written to the dead-letter store, labelled by reason.",
	}, []string{"reason"})
)
