package retention

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"mercator-hq/twigpack/pkg/manifest"
)

func newPruner(store manifest.Store, cfg *Config, existing ...string) *Pruner {
	p := NewPruner(store, cfg)
	p.logger = slog.Default()
	set := make(map[string]bool)
	for _, path := range existing {
		set[path] = true
	}
	p.exists = func(path string) bool { return set[path] }
	return p
}

func TestPruner_Prune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		config      *Config
		wantDeleted int64
		wantLeft    []string
	}{
		{
			name:        "age and missing sources",
			config:      &Config{Retention: 24 * time.Hour},
			wantDeleted: 2,
			wantLeft:    []string{"/t/fresh.twig"},
		},
		{
			name:        "keep forever, prune missing",
			config:      &Config{},
			wantDeleted: 1,
			wantLeft:    []string{"/t/fresh.twig", "/t/old.twig"},
		},
		{
			name:        "age only",
			config:      &Config{Retention: 24 * time.Hour, KeepMissing: true},
			wantDeleted: 1,
			wantLeft:    []string{"/t/fresh.twig", "/t/gone.twig"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := manifest.NewMemoryStore()
			for path, compiled := range map[string]time.Time{
				"/t/fresh.twig": now.Add(-time.Hour),
				"/t/old.twig":   now.Add(-72 * time.Hour),
				"/t/gone.twig":  now.Add(-time.Hour),
			} {
				if err := store.Record(ctx, &manifest.Entry{ResourcePath: path, CompiledAt: compiled}); err != nil {
					t.Fatal(err)
				}
			}

			p := newPruner(store, tt.config, "/t/fresh.twig", "/t/old.twig")
			p.now = func() time.Time { return now }

			deleted, err := p.Prune(ctx)
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("Prune() deleted %d, want %d", deleted, tt.wantDeleted)
			}

			left, _ := store.List(ctx)
			var got []string
			for _, e := range left {
				got = append(got, e.ResourcePath)
			}
			if !reflect.DeepEqual(got, tt.wantLeft) {
				t.Errorf("remaining = %v, want %v", got, tt.wantLeft)
			}
		})
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "valid daily schedule", schedule: "0 3 * * *", wantRunning: true},
		{name: "valid hourly schedule", schedule: "0 * * * *", wantRunning: true},
		{name: "empty schedule - no error, not running", schedule: ""},
		{name: "invalid schedule", schedule: "invalid cron", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := newPruner(manifest.NewMemoryStore(), &Config{
				PruneSchedule: tt.schedule,
				Retention:     time.Hour,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := pruner.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if pruner.scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", pruner.scheduler.IsRunning(), tt.wantRunning)
			}

			next := pruner.NextPruning()
			if tt.wantRunning {
				if next == nil {
					t.Error("NextPruning() returned nil for running scheduler")
				} else if !next.After(time.Now()) {
					t.Errorf("NextPruning() = %v, want a future time", next)
				}
			} else if next != nil {
				t.Errorf("NextPruning() = %v, want nil", next)
			}

			pruner.Stop()
			if pruner.scheduler.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	pruner := newPruner(manifest.NewMemoryStore(), &Config{PruneSchedule: "* * * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := pruner.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for pruner.scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
