package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/manifest"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// Retention is how long an entry is kept after its last compilation.
	// 0 keeps entries forever.
	Retention time.Duration

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// KeepMissing keeps entries whose template was deleted.
	KeepMissing bool
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		Retention:     config.DefaultManifestRetention,
		PruneSchedule: config.DefaultManifestPruneSchedule,
	}
}

// FromManifestConfig returns the retention configuration of cfg.
func FromManifestConfig(cfg *config.ManifestConfig) *Config {
	return &Config{
		Retention:     cfg.Retention,
		PruneSchedule: cfg.PruneSchedule,
	}
}

// Pruner enforces retention on a manifest.
type Pruner struct {
	store     manifest.Store
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	exists    func(path string) bool
	now       func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(store manifest.Store, cfg *Config) *Pruner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	pruner := &Pruner{
		store:  store,
		config: cfg,
		logger: slog.Default().With("component", "manifest.retention"),
		exists: fileExists,
		now:    time.Now,
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes stale entries and returns how many were removed.
//
// Pruning happens in two phases:
// 1. Age-based: delete entries compiled before now - Retention
// 2. Missing sources: delete entries whose template no longer exists
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.Retention > 0 {
		cutoff := p.now().Add(-p.config.Retention)
		deleted, err := p.store.Prune(ctx, cutoff)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Debug("pruned entries by age",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}

	if !p.config.KeepMissing {
		deleted, err := p.pruneMissing(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune missing sources failed: %w", err)
		}
		totalDeleted += deleted
	}

	if totalDeleted > 0 {
		p.logger.Info("manifest pruning completed",
			"total_deleted", totalDeleted,
			"retention", p.config.Retention,
		)
	}

	return totalDeleted, nil
}

// pruneMissing deletes entries whose template file is gone.
func (p *Pruner) pruneMissing(ctx context.Context) (int64, error) {
	entries, err := p.store.List(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, e := range entries {
		if p.exists(e.ResourcePath) {
			continue
		}
		if err := p.store.Delete(ctx, e.ResourcePath); err != nil {
			if errors.Is(err, manifest.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		p.logger.Debug("pruned entry with missing source", "resource", e.ResourcePath)
		deleted++
	}
	return deleted, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
