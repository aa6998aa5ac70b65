package metrics

import (
	"time"

	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// WatchMetrics tracks the file watcher and incremental rebuilds.
//
// Metrics:
//   - twigpack_watch_events_total: file system events by operation
//   - twigpack_rebuilds_total: rebuilds by status
//   - twigpack_rebuild_entries: entries recompiled per rebuild
//   - twigpack_rebuild_duration_seconds: rebuild duration histogram
type WatchMetrics struct {
	eventsTotal     *prometheus.CounterVec
	rebuildsTotal   *prometheus.CounterVec
	rebuildEntries  prometheus.Histogram
	rebuildDuration prometheus.Histogram
}

// NewWatchMetrics creates and registers watch metrics.
func NewWatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *WatchMetrics {
	wm := &WatchMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "watch_events_total",
				Help:      "Total number of file system events seen by the watcher",
			},
			[]string{"op"},
		),

		rebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rebuilds_total",
				Help:      "Total number of incremental rebuilds",
			},
			[]string{"status"},
		),

		rebuildEntries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rebuild_entries",
				Help:      "Number of entries recompiled per rebuild",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),

		rebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rebuild_duration_seconds",
				Help:      "Duration of incremental rebuilds in seconds",
				Buckets:   cfg.CompileDurationBuckets,
			},
		),
	}

	registry.MustRegister(
		wm.eventsTotal,
		wm.rebuildsTotal,
		wm.rebuildEntries,
		wm.rebuildDuration,
	)

	return wm
}

// RecordEvent counts a file system event.
func (wm *WatchMetrics) RecordEvent(op string) {
	wm.eventsTotal.WithLabelValues(op).Inc()
}

// RecordRebuild records a finished rebuild.
func (wm *WatchMetrics) RecordRebuild(status string, entries int, duration time.Duration) {
	wm.rebuildsTotal.WithLabelValues(status).Inc()
	wm.rebuildEntries.Observe(float64(entries))
	wm.rebuildDuration.Observe(duration.Seconds())
}
