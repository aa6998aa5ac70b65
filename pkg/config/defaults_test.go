package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
	if cfg.Mode != DefaultMode {
		t.Errorf("expected mode %q, got %q", DefaultMode, cfg.Mode)
	}
	if len(cfg.Environment.TemplatePaths) != 1 || cfg.Environment.TemplatePaths[0] != DefaultTemplatePath {
		t.Errorf("unexpected template paths %v", cfg.Environment.TemplatePaths)
	}
	if !cfg.Manifest.Enabled || !cfg.Manifest.WALMode {
		t.Error("expected manifest enabled with WAL mode")
	}
	if !cfg.Watch.SkipHidden {
		t.Error("expected hidden files to be skipped")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("expected tracing disabled")
	}
	if cfg.RenderContext != nil {
		t.Error("expected no render context")
	}
}

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Environment.Autoescape != DefaultAutoescape {
					t.Errorf("expected autoescape %q, got %q", DefaultAutoescape, cfg.Environment.Autoescape)
				}
				if cfg.Environment.MaxNestingLevel != DefaultMaxNestingLevel {
					t.Errorf("expected nesting %d, got %d", DefaultMaxNestingLevel, cfg.Environment.MaxNestingLevel)
				}
				if cfg.Output.Dir != DefaultOutputDir {
					t.Errorf("expected output dir %q, got %q", DefaultOutputDir, cfg.Output.Dir)
				}
				if cfg.Build.Workers < 1 {
					t.Errorf("expected positive workers, got %d", cfg.Build.Workers)
				}
				if cfg.Manifest.Path != DefaultManifestPath {
					t.Errorf("expected manifest path %q, got %q", DefaultManifestPath, cfg.Manifest.Path)
				}
				if cfg.Manifest.PruneSchedule != DefaultManifestPruneSchedule {
					t.Errorf("expected schedule %q, got %q", DefaultManifestPruneSchedule, cfg.Manifest.PruneSchedule)
				}
				if cfg.Watch.Debounce != DefaultWatchDebounce {
					t.Errorf("expected debounce %v, got %v", DefaultWatchDebounce, cfg.Watch.Debounce)
				}
				if cfg.Telemetry.Metrics.Namespace != DefaultMetricsNamespace {
					t.Errorf("expected namespace %q, got %q", DefaultMetricsNamespace, cfg.Telemetry.Metrics.Namespace)
				}
				if cfg.Telemetry.Tracing.SampleRatio != DefaultTracingSampleRatio {
					t.Errorf("expected sample ratio %v, got %v", DefaultTracingSampleRatio, cfg.Telemetry.Tracing.SampleRatio)
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				Mode:        "production",
				Environment: EnvironmentConfig{TemplatePaths: []string{"views"}, Autoescape: "false"},
				Output:      OutputConfig{Dir: "build", Extension: ".mjs"},
				Manifest:    ManifestConfig{Driver: "memory", Retention: time.Hour},
				Watch:       WatchConfig{Debounce: time.Second},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "production" {
					t.Errorf("expected mode preserved, got %q", cfg.Mode)
				}
				if cfg.Environment.TemplatePaths[0] != "views" || cfg.Environment.Autoescape != "false" {
					t.Errorf("environment not preserved: %+v", cfg.Environment)
				}
				if cfg.Output.Extension != ".mjs" {
					t.Errorf("expected extension preserved, got %q", cfg.Output.Extension)
				}
				if cfg.Manifest.Driver != "memory" || cfg.Manifest.Retention != time.Hour {
					t.Errorf("manifest not preserved: %+v", cfg.Manifest)
				}
				if cfg.Watch.Debounce != time.Second {
					t.Errorf("expected debounce preserved, got %v", cfg.Watch.Debounce)
				}
			},
		},
		{
			name:  "never sampler keeps zero ratio",
			input: Config{Telemetry: TelemetryConfig{Tracing: TracingConfig{Sampler: "never"}}},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Telemetry.Tracing.SampleRatio != 0 {
					t.Errorf("expected ratio 0, got %v", cfg.Telemetry.Tracing.SampleRatio)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_BucketsAreCopied(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Telemetry.Metrics.CompileDurationBuckets[0] = 42

	if DefaultCompileDurationBuckets[0] == 42 {
		t.Error("defaults must not share the bucket slice")
	}
}
