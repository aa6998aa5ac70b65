package config

import (
	"runtime"
	"time"
)

// Default values for configuration fields.
const (
	// Mode defaults
	DefaultMode = "development"

	// Environment defaults
	DefaultTemplatePath    = "templates"
	DefaultAutoescape      = "html"
	DefaultMaxNestingLevel = 100

	// Output defaults
	DefaultOutputDir       = "dist"
	DefaultOutputExtension = ".js"

	// Manifest defaults
	DefaultManifestEnabled       = true
	DefaultManifestDriver        = "sqlite"
	DefaultManifestPath          = ".twigpack/manifest.db"
	DefaultManifestMaxOpenConns  = 4
	DefaultManifestWALMode       = true
	DefaultManifestBusyTimeout   = 5 * time.Second
	DefaultManifestRetention     = 30 * 24 * time.Hour
	DefaultManifestPruneSchedule = "0 3 * * *" // 3 AM daily

	// Watch defaults
	DefaultWatchDebounce   = 100 * time.Millisecond
	DefaultWatchExtension  = ".twig"
	DefaultWatchSkipHidden = true

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "text"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "twigpack"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 1.0
	DefaultTracingServiceName  = "twigpack"
	DefaultOTLPInsecure        = true
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 2 * time.Second
)

// DefaultCompileDurationBuckets are the histogram buckets of the compile
// duration metric, in seconds.
var DefaultCompileDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}

// DefaultConfig returns a configuration with every default applied,
// including the boolean defaults that ApplyDefaults cannot distinguish from
// an explicit false. LoadConfig decodes YAML on top of it.
func DefaultConfig() *Config {
	cfg := &Config{
		Manifest: ManifestConfig{
			Enabled: DefaultManifestEnabled,
			WALMode: DefaultManifestWALMode,
		},
		Watch: WatchConfig{
			SkipHidden: DefaultWatchSkipHidden,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{
				OTLP: OTLPConfig{Insecure: DefaultOTLPInsecure},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their defaults.
// Fields that were explicitly set are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}

	// Environment defaults
	if len(cfg.Environment.TemplatePaths) == 0 {
		cfg.Environment.TemplatePaths = []string{DefaultTemplatePath}
	}
	if cfg.Environment.Autoescape == "" {
		cfg.Environment.Autoescape = DefaultAutoescape
	}
	if cfg.Environment.MaxNestingLevel == 0 {
		cfg.Environment.MaxNestingLevel = DefaultMaxNestingLevel
	}

	// Output defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.Extension == "" {
		cfg.Output.Extension = DefaultOutputExtension
	}

	if cfg.Build.Workers == 0 {
		cfg.Build.Workers = runtime.NumCPU()
	}

	// Manifest defaults
	if cfg.Manifest.Driver == "" {
		cfg.Manifest.Driver = DefaultManifestDriver
	}
	if cfg.Manifest.Path == "" {
		cfg.Manifest.Path = DefaultManifestPath
	}
	if cfg.Manifest.MaxOpenConns == 0 {
		cfg.Manifest.MaxOpenConns = DefaultManifestMaxOpenConns
	}
	if cfg.Manifest.BusyTimeout == 0 {
		cfg.Manifest.BusyTimeout = DefaultManifestBusyTimeout
	}
	if cfg.Manifest.Retention == 0 {
		cfg.Manifest.Retention = DefaultManifestRetention
	}
	if cfg.Manifest.PruneSchedule == "" {
		cfg.Manifest.PruneSchedule = DefaultManifestPruneSchedule
	}

	// Watch defaults
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = []string{DefaultWatchExtension}
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.CompileDurationBuckets) == 0 {
		cfg.Metrics.CompileDurationBuckets = append([]float64(nil), DefaultCompileDurationBuckets...)
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
