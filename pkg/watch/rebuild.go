package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/manifest"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
)

// RebuildRecorder receives rebuild metrics. *metrics.Collector implements
// it.
type RebuildRecorder interface {
	RecordRebuild(entries int, err error, duration time.Duration)
}

// BuildObserver is told the outcome of every rebuild. *health.Checker
// implements it.
type BuildObserver interface {
	ObserveBuild(err error)
}

// EntryResolver lists the current entry templates, typically by expanding
// the configured globs again so that new files are picked up.
type EntryResolver func() ([]string, error)

// Rebuilder recompiles the entries affected by a batch of changes.
// Batches are handled one at a time.
type Rebuilder struct {
	builder  *build.Builder
	store    manifest.Store
	entries  EntryResolver
	logger   *slog.Logger
	recorder RebuildRecorder
	observer BuildObserver
	tracer   *tracing.Tracer

	mu sync.Mutex
}

// RebuilderOption configures a Rebuilder.
type RebuilderOption func(*Rebuilder)

// WithEntries sets the resolver of the entry set.
func WithEntries(resolve EntryResolver) RebuilderOption {
	return func(r *Rebuilder) {
		r.entries = resolve
	}
}

// WithRebuildRecorder sets the metrics recorder.
func WithRebuildRecorder(rec RebuildRecorder) RebuilderOption {
	return func(r *Rebuilder) {
		r.recorder = rec
	}
}

// WithObserver sets the build observer.
func WithObserver(obs BuildObserver) RebuilderOption {
	return func(r *Rebuilder) {
		r.observer = obs
	}
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) RebuilderOption {
	return func(r *Rebuilder) {
		r.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RebuilderOption {
	return func(r *Rebuilder) {
		r.logger = logger
	}
}

// NewRebuilder creates a rebuilder writing through builder and reading
// dependencies from store.
func NewRebuilder(builder *build.Builder, store manifest.Store, opts ...RebuilderOption) *Rebuilder {
	r := &Rebuilder{
		builder: builder,
		store:   store,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "watch.rebuilder")
	if r.tracer == nil {
		r.tracer = tracing.Noop()
	}
	return r
}

// Handle implements Handler. It returns the error of the rebuild as a
// whole; entry failures are logged.
func (r *Rebuilder) Handle(ctx context.Context, changes []Change) error {
	report, err := r.Rebuild(ctx, changes)
	if err != nil {
		return err
	}
	for _, res := range report.Failed() {
		r.logger.ErrorContext(ctx, "entry rebuild failed", "entry", res.Entry, "error", res.Err)
	}
	return nil
}

// Rebuild recompiles the entries affected by changes:
//   - entries whose manifest record names a changed file, either as the
//     entry itself or as a dependency;
//   - changed files that are entries but were never built.
//
// Deleted entries are dropped from the manifest along with their output.
func (r *Rebuilder) Rebuild(ctx context.Context, changes []Change) (report *build.Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, tracing.SpanRebuild)
	defer func() { tracing.End(span, err) }()

	affected, err := r.affected(ctx, changes)
	if err != nil {
		r.finish(span, 0, err, start)
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrEntries, len(affected)))

	if len(affected) == 0 {
		r.logger.DebugContext(ctx, "no entries affected", "changes", len(changes))
		return &build.Report{}, nil
	}

	r.logger.InfoContext(ctx, "rebuilding", "entries", len(affected), "changes", len(changes))
	report, err = r.builder.Build(ctx, affected)
	if err != nil {
		r.finish(span, len(affected), err, start)
		return nil, err
	}
	r.finish(span, len(affected), report.Err(), start)
	return report, nil
}

func (r *Rebuilder) finish(span trace.Span, entries int, err error, start time.Time) {
	if err != nil {
		tracing.SetError(span, err)
	}
	if r.recorder != nil {
		r.recorder.RecordRebuild(entries, err, time.Since(start))
	}
	if r.observer != nil {
		r.observer.ObserveBuild(err)
	}
}

// affected returns the sorted entry paths to rebuild.
func (r *Rebuilder) affected(ctx context.Context, changes []Change) ([]string, error) {
	entrySet := make(map[string]struct{})
	if r.entries != nil {
		entries, err := r.entries()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entries: %w", err)
		}
		for _, e := range entries {
			entrySet[keys.Normalize(e)] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var affected []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		affected = append(affected, path)
	}

	for _, change := range changes {
		path := normalizeAbs(change.Path)

		if change.Removed() {
			if err := r.forget(ctx, path); err != nil {
				return nil, err
			}
		} else if _, ok := entrySet[path]; ok {
			add(path)
		}

		dependents, err := r.store.Dependents(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to look up dependents of %s: %w", path, err)
		}
		for _, e := range dependents {
			add(e.ResourcePath)
		}
	}

	sort.Strings(affected)
	return affected, nil
}

// forget drops a deleted entry and its output.
func (r *Rebuilder) forget(ctx context.Context, path string) error {
	entry, err := r.store.Get(ctx, path)
	if errors.Is(err, manifest.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if entry.OutputPath != "" {
		if err := os.Remove(filepath.FromSlash(entry.OutputPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.WarnContext(ctx, "failed to remove output", "output", entry.OutputPath, "error", err)
		}
	}
	if err := r.store.Delete(ctx, path); err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return err
	}
	r.logger.InfoContext(ctx, "entry removed", "entry", path)
	return nil
}

func normalizeAbs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return keys.Normalize(path)
}
