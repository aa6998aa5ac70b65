package metrics

import (
	"time"

	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CompileMetrics tracks template compilations.
//
// Metrics:
//   - twigpack_compile_total: compilations by mode and status
//   - twigpack_compile_duration_seconds: compilation duration histogram
//   - twigpack_compile_errors_total: failures by mode and phase
//   - twigpack_entry_dependencies: dependencies of the last compilation of an entry
type CompileMetrics struct {
	compileTotal    *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	dependencies    *prometheus.GaugeVec
}

// NewCompileMetrics creates and registers compile metrics with the provided registry.
func NewCompileMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CompileMetrics {
	cm := &CompileMetrics{
		compileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_total",
				Help:      "Total number of template compilations",
			},
			[]string{"mode", "status"},
		),

		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of template compilations in seconds",
				Buckets:   cfg.CompileDurationBuckets,
			},
			[]string{"mode"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_errors_total",
				Help:      "Total number of failed compilations by phase",
			},
			[]string{"mode", "phase"},
		),

		dependencies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "entry_dependencies",
				Help:      "Number of dependencies reported by the last compilation of an entry",
			},
			[]string{"entry"},
		),
	}

	registry.MustRegister(
		cm.compileTotal,
		cm.compileDuration,
		cm.errorsTotal,
		cm.dependencies,
	)

	return cm
}

// RecordCompile counts a compilation and observes its duration.
func (cm *CompileMetrics) RecordCompile(mode, status string, duration time.Duration) {
	cm.compileTotal.WithLabelValues(mode, status).Inc()
	cm.compileDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordError counts a failure in phase.
func (cm *CompileMetrics) RecordError(mode, phase string) {
	cm.errorsTotal.WithLabelValues(mode, phase).Inc()
}

// SetDependencies records the dependency count of entry.
func (cm *CompileMetrics) SetDependencies(entry string, n int) {
	cm.dependencies.WithLabelValues(entry).Set(float64(n))
}
