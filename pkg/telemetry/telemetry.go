package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/telemetry/health"
	"mercator-hq/twigpack/pkg/telemetry/logging"
	"mercator-hq/twigpack/pkg/telemetry/metrics"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
)

// Telemetry holds the observability components built from configuration.
type Telemetry struct {
	cfg     *config.TelemetryConfig
	logger  *logging.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// New builds the logger, metrics collector, tracer and health checker.
// Logs are written to w.
func New(cfg *config.TelemetryConfig, w io.Writer) (*Telemetry, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Logging, w))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the structured logger.
func (t *Telemetry) Logger() *logging.Logger { return t.logger }

// Metrics returns the Prometheus collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Handler returns the status server mux: metrics (when enabled) plus the
// health endpoints.
func (t *Telemetry) Handler(info health.VersionInfo) http.Handler {
	mux := http.NewServeMux()
	if t.cfg.Metrics.Enabled {
		mux.Handle(t.cfg.Metrics.Path, t.metrics.Handler())
	}
	t.health.Mount(mux, t.cfg.Health.LivenessPath, t.cfg.Health.ReadinessPath, info)
	return mux
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
