package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "manifest.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validModes       = map[string]bool{"development": true, "production": true}
	validAutoescapes = map[string]bool{"html": true, "js": true, "url": true, "false": true}
	validDrivers     = map[string]bool{"sqlite": true, "sqlite3": true, "memory": true}
	validLevels      = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats     = map[string]bool{"json": true, "text": true, "console": true}
	validSamplers    = map[string]bool{"always": true, "never": true, "ratio": true}
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if !validModes[strings.ToLower(cfg.Mode)] {
		errs = append(errs, FieldError{
			Field:   "mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'development' or 'production'", cfg.Mode),
		})
	}

	errs = append(errs, validateEnvironment(&cfg.Environment)...)
	errs = append(errs, validateOutput(&cfg.Output, &cfg.Build)...)
	errs = append(errs, validateManifest(&cfg.Manifest)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEnvironment(cfg *EnvironmentConfig) []FieldError {
	var errs []FieldError

	if len(cfg.TemplatePaths) == 0 {
		errs = append(errs, FieldError{
			Field:   "environment.template_paths",
			Message: "at least one template path is required",
		})
	}
	for i, p := range cfg.TemplatePaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("environment.template_paths[%d]", i),
				Message: "template path cannot be empty",
			})
		}
	}

	for ns, paths := range cfg.Namespaces {
		field := fmt.Sprintf("environment.namespaces.%s", ns)
		if ns == "" || strings.ContainsAny(ns, "@/") {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "namespace names cannot be empty or contain '@' or '/'",
			})
		}
		if len(paths) == 0 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "namespace requires at least one path",
			})
		}
	}

	if !validAutoescapes[cfg.Autoescape] {
		errs = append(errs, FieldError{
			Field:   "environment.autoescape",
			Message: fmt.Sprintf("invalid autoescape strategy %q: must be 'html', 'js', 'url' or 'false'", cfg.Autoescape),
		})
	}

	if cfg.MaxNestingLevel < 1 {
		errs = append(errs, FieldError{
			Field:   "environment.max_nesting_level",
			Message: "max nesting level must be positive",
		})
	}

	return errs
}

func validateOutput(out *OutputConfig, build *BuildConfig) []FieldError {
	var errs []FieldError

	if out.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "output.dir",
			Message: "output directory is required",
		})
	}
	if !strings.HasPrefix(out.Extension, ".") {
		errs = append(errs, FieldError{
			Field:   "output.extension",
			Message: fmt.Sprintf("output extension %q must start with '.'", out.Extension),
		})
	}
	if build.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "build.workers",
			Message: "workers must be at least 1",
		})
	}

	return errs
}

func validateManifest(cfg *ManifestConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "manifest.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite', 'sqlite3' or 'memory'", cfg.Driver),
		})
	}
	if cfg.Driver != "memory" && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "manifest.path",
			Message: "database path is required for sqlite drivers",
		})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{
			Field:   "manifest.max_open_conns",
			Message: "max open connections must be at least 1",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "manifest.busy_timeout",
			Message: "busy timeout cannot be negative",
		})
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "manifest.retention",
			Message: "retention cannot be negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "manifest.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
		})
	}

	return errs
}

func validateWatch(cfg *WatchConfig) []FieldError {
	var errs []FieldError

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "watch.debounce",
			Message: "debounce cannot be negative",
		})
	}
	for i, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("watch.extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must start with '.'", ext),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never' or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with /",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with /",
		})
	}
	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}

	return errs
}

// AutoescapeStrategy returns the escaping strategy handed to the template
// environment, empty when autoescaping is disabled.
func (c *EnvironmentConfig) AutoescapeStrategy() string {
	if c.Autoescape == "false" {
		return ""
	}
	return c.Autoescape
}
