package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/manifest"
	"mercator-hq/twigpack/pkg/telemetry"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
)

// shutdownTimeout bounds flushing telemetry on exit.
const shutdownTimeout = 5 * time.Second

// app bundles what every command needs: the resolved configuration, the
// telemetry stack, the compiler and, unless disabled, the manifest.
type app struct {
	ctx      context.Context
	cfg      *config.Config
	tel      *telemetry.Telemetry
	logger   *slog.Logger
	compiler *build.Compiler
	store    manifest.Store

	compilerOpts []build.Option

	format cli.OutputFormat
	styles *cli.Styles
	out    io.Writer
}

// loadConfig reads the configuration file, applies TWIGPACK_* variables and
// the global flags, then validates the result.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, configError(err)
	}

	if globalFlags.mode != "" {
		cfg.Mode = globalFlags.mode
	}
	if globalFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = globalFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if globalFlags.noManifest {
		cfg.Manifest.Enabled = false
	}
	if cfg.Environment.RootPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg.Environment.RootPath = wd
	}

	if err := config.Validate(cfg); err != nil {
		return nil, configError(err)
	}
	config.SetConfig(cfg)
	return cfg, nil
}

func configError(err error) error {
	var ve config.ValidationError
	if errors.As(err, &ve) && len(ve.Errors) == 1 {
		return cli.NewConfigError(ve.Errors[0].Field, ve.Errors[0].Message)
	}
	return cli.NewConfigError("", err.Error())
}

// newApp builds the application for cmd. Extra compiler options are
// appended to the telemetry wiring.
func newApp(cmd *cobra.Command, opts ...build.Option) (*app, error) {
	format, err := cli.ParseFormat(globalFlags.format)
	if err != nil {
		return nil, cli.NewConfigError("format", err.Error())
	}
	colorMode, err := cli.ParseColorMode(globalFlags.color)
	if err != nil {
		return nil, cli.NewConfigError("color", err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(&cfg.Telemetry, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger().Slog()
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := &app{
		ctx:    tracing.ExtractFromEnv(ctx),
		cfg:    cfg,
		tel:    tel,
		logger: logger,
		format: format,
		styles: cli.NewStyles(cmd.OutOrStdout(), colorMode),
		out:    cmd.OutOrStdout(),
	}

	a.compilerOpts = append([]build.Option{
		build.WithLogger(logger),
		build.WithRecorder(tel.Metrics()),
		build.WithTracer(tel.Tracer()),
	}, opts...)
	a.compiler, err = build.NewFromConfig(cfg, a.compilerOpts...)
	if err != nil {
		a.close()
		if errors.Is(err, build.ErrNoModulePath) {
			return nil, cli.NewConfigError("environment.module_path", err.Error())
		}
		return nil, cli.NewConfigError("mode", err.Error())
	}

	if cfg.Manifest.Enabled {
		store, err := manifest.Open(&cfg.Manifest)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		a.store = manifest.Instrument(store, tel.Metrics())
	}

	logger.Debug("twigpack initialized",
		"command", cmd.Name(),
		"mode", a.compiler.Mode(),
		"key_mode", a.compiler.KeyMode(),
		"manifest", cfg.Manifest.Enabled)
	return a, nil
}

// setRenderContext recreates the compiler in direct render mode.
func (a *app) setRenderContext(vars map[string]any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	a.cfg.RenderContext = vars
	compiler, err := build.NewFromConfig(a.cfg, a.compilerOpts...)
	if err != nil {
		return err
	}
	a.compiler = compiler
	return nil
}

// close releases the manifest and flushes pending spans.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close manifest", "error", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
}

// templateRoot is the first search path of the main namespace. Output
// paths mirror the layout below it.
func (a *app) templateRoot() string {
	dir := a.cfg.Environment.TemplatePaths[0]
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(a.cfg.Environment.RootPath, dir)
}

// entries resolves the command line patterns against the working
// directory, or the configured entries against the root path.
func (a *app) entries(args []string) ([]string, error) {
	if len(args) > 0 {
		return build.ResolveEntries(".", args)
	}
	if len(a.cfg.Entries) == 0 {
		return nil, cli.NewConfigError("entries", "no entries configured and none given on the command line")
	}
	return build.ResolveEntries(a.cfg.Environment.RootPath, a.cfg.Entries)
}

// builder returns a batch builder over the configured output settings.
func (a *app) builder(opts build.BuilderOptions) *build.Builder {
	opts.RootPath = a.templateRoot()
	if opts.OutputDir == "" {
		opts.OutputDir = a.cfg.Output.Dir
	}
	if opts.Extension == "" {
		opts.Extension = a.cfg.Output.Extension
	}
	if opts.Workers == 0 {
		opts.Workers = a.cfg.Build.Workers
	}
	return build.NewBuilder(a.compiler, a.store, opts, a.logger)
}

// requireStore fails commands that need the manifest when it is disabled.
func (a *app) requireStore(command string) error {
	if a.store == nil {
		return cli.NewCommandError(command, errors.New("the manifest is disabled"))
	}
	return nil
}

// absPath resolves a template argument against the working directory.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

// readTemplate reads a template given on the command line.
func readTemplate(path string) (string, string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", "", err
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to read template: %w", err)
	}
	return abs, string(source), nil
}

// emit writes data in the --format output format. Text output goes through
// text when non-nil.
func (a *app) emit(data any, text func(io.Writer) error) error {
	return cli.NewPrinter(a.out, a.format).Print(data, text)
}
