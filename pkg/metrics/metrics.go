package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchOutcomes counts reaction dispatches by resulting action
	// (saved|deleted|skipped).
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ovation_reaction_dispatch_total",
			Help: "Total number of reaction notification dispatches",
		},
		[]string{"action"},
	)

	// DispatchFailures counts apply calls that returned an error and were
	// handed back to the queue for retry.
	DispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ovation_reaction_dispatch_failures_total",
			Help: "Total number of failed reaction notification dispatches",
		},
	)

	// ApplyDuration measures end-to-end latency of a single upsert
	// transaction, sibling query included.
	ApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ovation_reaction_apply_seconds",
			Help:    "Latency of reaction notification apply transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueueDepth tracks jobs waiting in the in-process event queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ovation_queue_depth",
			Help: "Number of events waiting to be dispatched",
		},
	)
)
