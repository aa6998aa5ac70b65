package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/twigpack/pkg/config"
)

// DriverMemory selects the in-memory backend.
const DriverMemory = "memory"

// Open returns the store configured by cfg. A disabled manifest gets an
// in-memory store so callers never deal with a nil Store.
func Open(cfg *config.ManifestConfig) (Store, error) {
	if !cfg.Enabled || cfg.Driver == DriverMemory {
		return NewMemoryStore(), nil
	}

	store, err := NewSQLiteStore(&SQLiteConfig{
		Driver:       cfg.Driver,
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return store, nil
}

func validateEntry(e *Entry) error {
	if e == nil {
		return errors.New("entry cannot be nil")
	}
	if e.ResourcePath == "" {
		return errors.New("entry resource path cannot be empty")
	}
	return nil
}

// Observer receives manifest metrics. *metrics.Collector implements it.
type Observer interface {
	RecordManifestOperation(operation string, err error, duration time.Duration)
	UpdateManifestEntries(n int)
}

// Instrument wraps store so every operation is reported to obs.
func Instrument(store Store, obs Observer) Store {
	return &instrumented{Store: store, obs: obs}
}

type instrumented struct {
	Store
	obs Observer
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.obs.RecordManifestOperation(op, err, time.Since(start))
}

func (s *instrumented) Record(ctx context.Context, e *Entry) (err error) {
	defer func(start time.Time) { s.observe("record", start, err) }(time.Now())
	return s.Store.Record(ctx, e)
}

func (s *instrumented) Get(ctx context.Context, resourcePath string) (_ *Entry, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.Store.Get(ctx, resourcePath)
}

func (s *instrumented) List(ctx context.Context) (entries []*Entry, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())
	entries, err = s.Store.List(ctx)
	if err == nil {
		s.obs.UpdateManifestEntries(len(entries))
	}
	return entries, err
}

func (s *instrumented) Dependents(ctx context.Context, path string) (_ []*Entry, err error) {
	defer func(start time.Time) { s.observe("dependents", start, err) }(time.Now())
	return s.Store.Dependents(ctx, path)
}

func (s *instrumented) Delete(ctx context.Context, resourcePath string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.Store.Delete(ctx, resourcePath)
}

func (s *instrumented) Prune(ctx context.Context, olderThan time.Time) (_ int64, err error) {
	defer func(start time.Time) { s.observe("prune", start, err) }(time.Now())
	return s.Store.Prune(ctx, olderThan)
}
