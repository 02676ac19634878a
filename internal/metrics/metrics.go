// Package metrics implements Prometheus metrics for the event-builder core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsIngestedTotal counts fragments accepted into a source's queue.
	FragmentsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_fragments_ingested_total",
			Help: "Total number of fragments accepted into per-source queues",
		},
		[]string{"pipe", "source_id"},
	)

	// FragmentsRejectedTotal counts fragments rejected for arriving from an
	// unauthorized source id.
	FragmentsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_fragments_rejected_total",
			Help: "Total number of fragments rejected as unauthorized",
		},
		[]string{"pipe", "source_id"},
	)

	// LateFragmentsTotal counts fragments flagged as late: by the orderer's
	// late-data observer (more than the build window behind the newest
	// timestamp) and by the adapter's non-monotonic timestamp check. Flagged
	// fragments are still enqueued.
	LateFragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_late_fragments_total",
			Help: "Total number of fragments flagged as late data",
		},
		[]string{"pipe", "source_id"},
	)

	// BuiltEventsTotal counts ordered fragment batches emitted by FlushQueues.
	BuiltEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_built_events_total",
			Help: "Total number of ordered fragment batches emitted",
		},
		[]string{"pipe"},
	)

	// CompleteBarriersTotal counts barrier emissions with no source missing.
	CompleteBarriersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_complete_barriers_total",
			Help: "Total number of complete barrier emissions",
		},
		[]string{"pipe"},
	)

	// PartialBarriersTotal counts barrier emissions with one or more sources
	// missing.
	PartialBarriersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_partial_barriers_total",
			Help: "Total number of partial (malformed) barrier emissions",
		},
		[]string{"pipe"},
	)

	// QueueDepth tracks the current depth of a source's queue, sampled from
	// Orderer.Statistics().
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "daqevb_queue_depth",
			Help: "Current number of fragments queued for a source",
		},
		[]string{"pipe", "source_id"},
	)

	// CompositesEmittedTotal counts composite items the glommer writes
	// downstream.
	CompositesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daqevb_composites_emitted_total",
			Help: "Total number of composite items emitted by the glommer",
		},
		[]string{"pipe"},
	)

	// GlomDepth tracks the glommer's state-change nesting counter — a
	// diagnostic only, mirroring the original's stateChangeNesting.
	GlomDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "daqevb_glom_depth",
			Help: "Current state-change nesting depth tracked by the glommer",
		},
		[]string{"pipe"},
	)
)
