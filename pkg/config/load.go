package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over DefaultConfig, remaining zero values get their
// defaults, and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults without
// validating.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TWIGPACK_SECTION_FIELD (e.g., TWIGPACK_MANIFEST_DRIVER).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults, so the CLI runs
// without a configuration file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format TWIGPACK_SECTION_FIELD. Values that do
// not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("TWIGPACK_MODE"); val != "" {
		cfg.Mode = val
	}

	// Environment overrides
	if val := os.Getenv("TWIGPACK_ENVIRONMENT_MODULE_PATH"); val != "" {
		cfg.Environment.ModulePath = val
	}
	if val := os.Getenv("TWIGPACK_ENVIRONMENT_ROOT_PATH"); val != "" {
		cfg.Environment.RootPath = val
	}
	if val := os.Getenv("TWIGPACK_ENVIRONMENT_TEMPLATE_PATHS"); val != "" {
		cfg.Environment.TemplatePaths = splitList(val)
	}
	if val := os.Getenv("TWIGPACK_ENVIRONMENT_AUTOESCAPE"); val != "" {
		cfg.Environment.Autoescape = val
	}
	if val := os.Getenv("TWIGPACK_ENVIRONMENT_STRICT_VARIABLES"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Environment.StrictVariables = b
		}
	}

	// Output overrides
	if val := os.Getenv("TWIGPACK_OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}
	if val := os.Getenv("TWIGPACK_OUTPUT_EXTENSION"); val != "" {
		cfg.Output.Extension = val
	}

	if val := os.Getenv("TWIGPACK_BUILD_WORKERS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Build.Workers = i
		}
	}

	// Manifest overrides
	if val := os.Getenv("TWIGPACK_MANIFEST_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Manifest.Enabled = b
		}
	}
	if val := os.Getenv("TWIGPACK_MANIFEST_DRIVER"); val != "" {
		cfg.Manifest.Driver = val
	}
	if val := os.Getenv("TWIGPACK_MANIFEST_PATH"); val != "" {
		cfg.Manifest.Path = val
	}
	if val := os.Getenv("TWIGPACK_MANIFEST_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Manifest.Retention = d
		}
	}
	if val := os.Getenv("TWIGPACK_MANIFEST_PRUNE_SCHEDULE"); val != "" {
		cfg.Manifest.PruneSchedule = val
	}

	// Watch overrides
	if val := os.Getenv("TWIGPACK_WATCH_DEBOUNCE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Watch.Debounce = d
		}
	}
	if val := os.Getenv("TWIGPACK_WATCH_LISTEN_ADDRESS"); val != "" {
		cfg.Watch.ListenAddress = val
	}

	// Telemetry overrides
	if val := os.Getenv("TWIGPACK_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("TWIGPACK_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("TWIGPACK_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("TWIGPACK_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("TWIGPACK_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("TWIGPACK_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

// splitList splits a path list on the OS list separator or commas.
func splitList(val string) []string {
	fields := strings.FieldsFunc(val, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
