package metrics

import (
	"time"

	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ManifestMetrics tracks the dependency manifest store.
//
// Metrics:
//   - twigpack_manifest_operations_total: store calls by operation and status
//   - twigpack_manifest_operation_duration_seconds: store call latency
//   - twigpack_manifest_entries: entries currently recorded
type ManifestMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	entries           prometheus.Gauge
}

// NewManifestMetrics creates and registers manifest metrics.
func NewManifestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ManifestMetrics {
	mm := &ManifestMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "manifest",
				Name:      "operations_total",
				Help:      "Total number of manifest store operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "manifest",
				Name:      "operation_duration_seconds",
				Help:      "Duration of manifest store operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~256ms
			},
			[]string{"operation"},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "manifest",
				Name:      "entries",
				Help:      "Number of entries recorded in the manifest",
			},
		),
	}

	registry.MustRegister(
		mm.operationsTotal,
		mm.operationDuration,
		mm.entries,
	)

	return mm
}

// RecordOperation counts a store call and observes its latency.
func (mm *ManifestMetrics) RecordOperation(operation, status string, duration time.Duration) {
	mm.operationsTotal.WithLabelValues(operation, status).Inc()
	mm.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateEntries sets the entry gauge.
func (mm *ManifestMetrics) UpdateEntries(n int) {
	mm.entries.Set(float64(n))
}
