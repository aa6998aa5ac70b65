package config

import "time"

// Config is the root configuration structure for twigpack.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	// Environment configures the template environment shared by every
	// compilation: where templates live and how they render.
	Environment EnvironmentConfig `yaml:"environment"`

	// Mode selects how template keys are derived.
	// Options: "development" (normalized paths), "production" (SHA-256 digests)
	// Default: "development"
	Mode string `yaml:"mode"`

	// RenderContext, when set, switches compilation to direct render: each
	// entry is rendered with these variables and emitted as a string module.
	// When absent, entries are precompiled.
	RenderContext map[string]any `yaml:"render_context"`

	// Entries lists the templates (or glob patterns) compiled by "build".
	Entries []string `yaml:"entries"`

	// Output controls where compiled modules are written.
	Output OutputConfig `yaml:"output"`

	// Build controls the batch compiler.
	Build BuildConfig `yaml:"build"`

	// Manifest configures the persistent dependency manifest.
	Manifest ManifestConfig `yaml:"manifest"`

	// Watch configures the file watcher and its status server.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EnvironmentConfig configures the template environment.
type EnvironmentConfig struct {
	// ModulePath is the runtime module required by every precompiled
	// template (the JavaScript environment that registers templates).
	// Example: "./twig.env.js"
	ModulePath string `yaml:"module_path"`

	// RootPath is the directory relative template paths are resolved
	// against.
	// Default: working directory
	RootPath string `yaml:"root_path"`

	// TemplatePaths are the search paths of the main namespace.
	// Default: ["templates"]
	TemplatePaths []string `yaml:"template_paths"`

	// Namespaces maps a namespace (used as "@name/template.twig") to its
	// search paths.
	Namespaces map[string][]string `yaml:"namespaces"`

	// Autoescape is the default escaping strategy.
	// Options: "html", "js", "url", "false" (disabled)
	// Default: "html"
	Autoescape string `yaml:"autoescape"`

	// StrictVariables makes undefined variables and attributes fatal.
	// Default: false
	StrictVariables bool `yaml:"strict_variables"`

	// MaxNestingLevel bounds include and macro recursion.
	// Default: 100
	MaxNestingLevel int `yaml:"max_nesting_level"`

	// Globals are variables visible to every template.
	Globals map[string]any `yaml:"globals"`
}

// OutputConfig controls where compiled modules are written.
type OutputConfig struct {
	// Dir is the output directory.
	// Default: "dist"
	Dir string `yaml:"dir"`

	// Extension replaces the template extension of each entry.
	// Default: ".js"
	Extension string `yaml:"extension"`

	// Clean removes the output directory before a full build.
	// Default: false
	Clean bool `yaml:"clean"`
}

// BuildConfig controls the batch compiler.
type BuildConfig struct {
	// Workers is the number of entries compiled concurrently.
	// Default: number of CPUs
	Workers int `yaml:"workers"`

	// FailFast stops the build at the first failing entry.
	// Default: false
	FailFast bool `yaml:"fail_fast"`
}

// ManifestConfig configures the dependency manifest.
type ManifestConfig struct {
	// Enabled controls whether compilations are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Driver selects the storage backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo), "memory"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: ".twigpack/manifest.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a locked database is retried.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Retention is the age after which entries are pruned.
	// Default: 720h (30 days)
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is the cron expression of the prune job run by "watch".
	// Default: "0 3 * * *" (3 AM daily)
	PruneSchedule string `yaml:"prune_schedule"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Debounce is the quiet period collecting changes into one rebuild.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// Extensions are the file extensions that trigger rebuilds.
	// Default: [".twig"]
	Extensions []string `yaml:"extensions"`

	// SkipHidden ignores files and directories starting with a dot.
	// Default: true
	SkipHidden bool `yaml:"skip_hidden"`

	// ListenAddress serves metrics and health endpoints while watching.
	// Empty disables the status server.
	// Example: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPaths replaces the user's home directory in logged paths.
	// Default: false
	RedactPaths bool `yaml:"redact_paths"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "twigpack"
	Namespace string `yaml:"namespace"`

	// CompileDurationBuckets defines histogram buckets for compile duration (seconds).
	// Default: [0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0]
	CompileDurationBuckets []float64 `yaml:"compile_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "twigpack"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
