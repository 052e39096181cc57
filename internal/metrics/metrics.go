// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "traktsync"

var (
	// ImportRuns counts account import passes by result (ok, error, cancelled)
	ImportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_runs_total",
		Help:      "Account import passes by result.",
	}, []string{"result"})

	// ImportItems counts items processed by import passes by outcome
	ImportItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_items_total",
		Help:      "Library items processed during import by outcome.",
	}, []string{"outcome"})

	// ImportDuration observes the duration of one account import pass
	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "import_duration_seconds",
		Help:      "Duration of one account import pass.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// Events counts playstate events accepted by the batcher
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Playstate events accepted for export.",
	}, []string{"type", "played"})

	// Flushes counts bulk history calls by trigger and result
	Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Bulk watch history calls.",
	}, []string{"type", "seen", "trigger", "result"})

	// FlushedItems counts items sent in bulk history calls
	FlushedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushed_items_total",
		Help:      "Items sent in bulk watch history calls.",
	}, []string{"type", "seen"})

	// PointChecks counts stop-playback point checks by result
	PointChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "point_checks_total",
		Help:      "Stop-playback point checks by result.",
	}, []string{"result"})

	// PendingItems is the number of buffered, not yet flushed events
	PendingItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_items",
		Help:      "Playstate events buffered for export.",
	})
)
