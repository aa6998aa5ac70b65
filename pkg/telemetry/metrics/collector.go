package metrics

import (
	"sync"
	"time"

	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every twigpack Prometheus metric. Recording methods are
// no-ops when metrics are disabled, so callers never check the config.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	compileMetrics   *CompileMetrics
	discoveryMetrics *DiscoveryMetrics
	manifestMetrics  *ManifestMetrics
	watchMetrics     *WatchMetrics

	// entryLimiter bounds the per-entry label values
	entryLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics with registry.
// A nil registry gets a fresh one.
//
// Example:
//
//	cfg := config.DefaultConfig().Telemetry.Metrics
//	collector := metrics.NewCollector(&cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.CompileDurationBuckets) == 0 {
		cfg.CompileDurationBuckets = append([]float64(nil), config.DefaultCompileDurationBuckets...)
	}

	return &Collector{
		config:           cfg,
		registry:         registry,
		compileMetrics:   NewCompileMetrics(cfg, registry),
		discoveryMetrics: NewDiscoveryMetrics(cfg, registry),
		manifestMetrics:  NewManifestMetrics(cfg, registry),
		watchMetrics:     NewWatchMetrics(cfg, registry),
		entryLimiter:     NewCardinalityLimiter(1000),
	}
}

// RecordCompile records a finished compilation.
//
// Parameters:
//   - entry: resource path of the compiled entry
//   - mode: "precompile" or "direct-render"
//   - status: "success" or "error"
//   - duration: wall time of the compilation
//   - dependencies: number of dependencies reported to the host
func (c *Collector) RecordCompile(entry, mode, status string, duration time.Duration, dependencies int) {
	if !c.config.Enabled {
		return
	}

	c.compileMetrics.RecordCompile(mode, status, duration)
	if status == "success" {
		if !c.entryLimiter.Allow(entry) {
			entry = "other"
		}
		c.compileMetrics.SetDependencies(entry, dependencies)
	}
}

// RecordCompileError records a failed compilation phase
// ("parse", "discover", "codegen", "render", "environment").
func (c *Collector) RecordCompileError(mode, phase string) {
	if !c.config.Enabled {
		return
	}

	c.compileMetrics.RecordError(mode, phase)
}

// RecordReferences records the outcome of reference discovery for one tree.
// tracked counts real files reported as dependencies, rewritten counts every
// rewritten literal and unresolved the literals left unchanged.
func (c *Collector) RecordReferences(tracked, rewritten, unresolved int) {
	if !c.config.Enabled {
		return
	}

	c.discoveryMetrics.RecordReferences(tracked, rewritten, unresolved)
}

// RecordManifestOperation records a manifest store call.
func (c *Collector) RecordManifestOperation(operation string, err error, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	c.manifestMetrics.RecordOperation(operation, status, duration)
}

// UpdateManifestEntries sets the number of entries held by the manifest.
func (c *Collector) UpdateManifestEntries(n int) {
	if !c.config.Enabled {
		return
	}

	c.manifestMetrics.UpdateEntries(n)
}

// RecordWatchEvent records a file system event seen by the watcher.
func (c *Collector) RecordWatchEvent(op string) {
	if !c.config.Enabled {
		return
	}

	c.watchMetrics.RecordEvent(op)
}

// RecordRebuild records a rebuild triggered by a batch of changes.
func (c *Collector) RecordRebuild(entries int, err error, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	c.watchMetrics.RecordRebuild(status, entries, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet may be used: it is already known or the
// limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
