package metrics

import (
	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DiscoveryMetrics tracks template references found in compiled trees.
//
// Metrics:
//   - twigpack_references_total: literal template references by outcome
//     ("tracked", "rewritten", "unresolved")
type DiscoveryMetrics struct {
	referencesTotal *prometheus.CounterVec
}

// NewDiscoveryMetrics creates and registers discovery metrics.
func NewDiscoveryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DiscoveryMetrics {
	dm := &DiscoveryMetrics{
		referencesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "references_total",
				Help:      "Total number of literal template references by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(dm.referencesTotal)
	return dm
}

// RecordReferences adds the outcome counts of one discovery pass.
func (dm *DiscoveryMetrics) RecordReferences(tracked, rewritten, unresolved int) {
	if tracked > 0 {
		dm.referencesTotal.WithLabelValues("tracked").Add(float64(tracked))
	}
	if rewritten > 0 {
		dm.referencesTotal.WithLabelValues("rewritten").Add(float64(rewritten))
	}
	if unresolved > 0 {
		dm.referencesTotal.WithLabelValues("unresolved").Add(float64(unresolved))
	}
}
