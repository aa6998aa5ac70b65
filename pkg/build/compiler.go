package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/discovery"
	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/telemetry/logging"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
	"mercator-hq/twigpack/pkg/twig"
)

// Recorder receives compilation metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordCompile(entry, mode, status string, duration time.Duration, dependencies int)
	RecordCompileError(mode, phase string)
	RecordReferences(tracked, rewritten, unresolved int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCompile(string, string, string, time.Duration, int) {}
func (nopRecorder) RecordCompileError(string, string)                        {}
func (nopRecorder) RecordReferences(int, int, int)                           {}

// Config configures a Compiler.
type Config struct {
	// EnvironmentModulePath is the runtime module required by precompiled
	// output. It is always registered as a dependency.
	EnvironmentModulePath string

	// KeyMode selects how template keys are derived.
	KeyMode keys.Mode

	// RenderContext selects direct render when non-nil.
	RenderContext map[string]any

	// Environment creates the template environment of each compilation.
	Environment EnvironmentFactory
}

// Result is the outcome of a successful compilation.
type Result struct {
	// CompilationID identifies the compilation in logs and traces.
	CompilationID string `json:"compilation_id"`

	// Entry is the resource path of the entry.
	Entry string `json:"entry"`

	// Mode is the mode the entry was compiled in.
	Mode Mode `json:"mode"`

	// Key is the derived key of the entry.
	Key string `json:"key"`

	// Code is the generated JavaScript module.
	Code string `json:"-"`

	// Dependencies are the files registered with the host, in order.
	Dependencies []string `json:"dependencies"`

	// References are the rewritten constants (precompile only).
	References []discovery.Reference `json:"references,omitempty"`

	// Unresolved are the literals left unchanged (precompile only).
	Unresolved []Unresolved `json:"unresolved,omitempty"`

	// Duration is the wall time of the compilation.
	Duration time.Duration `json:"duration"`
}

// Unresolved is a literal the loader did not know.
type Unresolved struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Compiler compiles entry templates.
type Compiler struct {
	modulePath    string
	deriver       *keys.Deriver
	renderContext map[string]any
	environment   EnvironmentFactory
	strategy      Strategy

	logger       *slog.Logger
	recorder     Recorder
	tracer       *tracing.Tracer
	fileChecker  discovery.FileChecker
	onUnresolved discovery.UnresolvedHook
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Compiler) {
		c.recorder = r
	}
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Compiler) {
		c.tracer = t
	}
}

// WithFileChecker replaces the real-file test of reference discovery.
func WithFileChecker(fn discovery.FileChecker) Option {
	return func(c *Compiler) {
		c.fileChecker = fn
	}
}

// WithUnresolvedHook is called for every literal the loader does not know.
func WithUnresolvedHook(hook discovery.UnresolvedHook) Option {
	return func(c *Compiler) {
		c.onUnresolved = hook
	}
}

// New creates a compiler. The mode is selected here, once.
func New(cfg Config, opts ...Option) (*Compiler, error) {
	if cfg.EnvironmentModulePath == "" {
		return nil, ErrNoModulePath
	}
	if cfg.Environment == nil {
		return nil, errors.New("environment factory is required")
	}
	mode := cfg.KeyMode
	if mode == "" {
		mode = keys.Development
	}

	c := &Compiler{
		modulePath:    keys.Normalize(cfg.EnvironmentModulePath),
		deriver:       keys.NewDeriver(mode),
		renderContext: cfg.RenderContext,
		environment:   cfg.Environment,
		recorder:      nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "build.compiler")
	}
	if c.tracer == nil {
		c.tracer = tracing.Noop()
	}

	switch SelectMode(cfg.RenderContext) {
	case ModeDirectRender:
		c.strategy = &directRender{context: cfg.RenderContext}
	default:
		c.strategy = &precompile{}
	}
	return c, nil
}

// NewFromConfig creates a compiler for the application configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Compiler, error) {
	mode, err := keys.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	c := &Compiler{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return New(Config{
		EnvironmentModulePath: cfg.Environment.ModulePath,
		KeyMode:               mode,
		RenderContext:         cfg.RenderContext,
		Environment:           NewEnvironmentFactory(&cfg.Environment, c.logger),
	}, opts...)
}

// Mode returns the compilation mode.
func (c *Compiler) Mode() Mode {
	return c.strategy.Mode()
}

// KeyMode returns the key derivation mode.
func (c *Compiler) KeyMode() keys.Mode {
	return c.deriver.Mode()
}

// Key returns the key of the entry at resourcePath.
func (c *Compiler) Key(resourcePath string) string {
	return c.deriver.PathKey(resourcePath)
}

// Compile compiles source, the code of the entry named by host. Parse
// failures abort the compilation without output.
func (c *Compiler) Compile(ctx context.Context, host Host, source string) (*Result, error) {
	return c.run(ctx, host, source, c.strategy)
}

// Discover parses source and resolves its references without generating
// code, whatever the compiler mode. The result has no Code.
func (c *Compiler) Discover(ctx context.Context, host Host, source string) (*Result, error) {
	return c.run(ctx, host, source, analyze{})
}

func (c *Compiler) run(ctx context.Context, host Host, source string, strategy Strategy) (result *Result, err error) {
	start := time.Now()
	resourcePath := keys.Normalize(host.ResourcePath())
	mode := strategy.Mode()
	id := uuid.NewString()

	ctx = logging.WithCompilationID(ctx, id)
	ctx = logging.WithResource(ctx, resourcePath)
	ctx = logging.WithMode(ctx, mode.String())

	ctx, span := c.tracer.Start(ctx, tracing.SpanCompile,
		trace.WithAttributes(tracing.CompileAttributes(id, resourcePath, mode.String(), c.deriver.Mode().String())...))
	defer func() { tracing.End(span, err) }()

	logger := c.logger.With("compilation_id", id, "resource", resourcePath, "mode", mode.String())
	logger.DebugContext(ctx, "compiling template")

	tracked := newTrackingHost(host)
	tracked.AddDependency(c.modulePath)

	comp := &compilation{
		compiler:     c,
		host:         tracked,
		resourcePath: resourcePath,
		source:       source,
		key:          c.deriver.PathKey(resourcePath),
		logger:       logger,
	}

	comp.env, err = c.environment()
	if err != nil {
		err = phaseError(resourcePath, PhaseEnvironment, err)
		c.fail(ctx, logger, span, mode, time.Since(start), err)
		return nil, err
	}

	code, err := strategy.Compile(ctx, comp)
	if err != nil {
		c.fail(ctx, logger, span, mode, time.Since(start), err)
		return nil, err
	}

	result = &Result{
		CompilationID: id,
		Entry:         resourcePath,
		Mode:          mode,
		Key:           comp.key,
		Code:          code,
		Dependencies:  tracked.record.Dependencies(),
		References:    comp.references,
		Unresolved:    comp.unresolved,
		Duration:      time.Since(start),
	}

	tracing.SetResultAttributes(span, result.Key, len(result.Dependencies), len(code))
	c.recorder.RecordCompile(resourcePath, mode.String(), "success", result.Duration, len(result.Dependencies))
	logger.InfoContext(ctx, "template compiled",
		"key", result.Key,
		"dependencies", len(result.Dependencies),
		"duration", result.Duration)

	return result, nil
}

func (c *Compiler) fail(ctx context.Context, logger *slog.Logger, span trace.Span, mode Mode, d time.Duration, err error) {
	phase := PhaseEnvironment
	var ce *CompileError
	if errors.As(err, &ce) {
		phase = ce.Phase
	}
	tracing.SetPhase(span, phase)
	c.recorder.RecordCompileError(mode.String(), phase)
	c.recorder.RecordCompile(logging.GetResource(ctx), mode.String(), "error", d, 0)
	logger.ErrorContext(ctx, "template compilation failed", "phase", phase, "error", err)
}

// compilation is the state of one Compile call. It is owned by a single
// goroutine.
type compilation struct {
	compiler     *Compiler
	env          *twig.Environment
	host         *trackingHost
	resourcePath string
	source       string
	key          string
	logger       *slog.Logger

	references []discovery.Reference
	unresolved []Unresolved
}

func (c *compilation) fail(phase string, err error) error {
	return phaseError(c.resourcePath, phase, err)
}

func (c *compilation) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.compiler.tracer.Start(ctx, name)
}
