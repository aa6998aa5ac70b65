package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/twigpack/pkg/config"
)

// stores returns one instance of every backend.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	result := map[string]Store{"memory": NewMemoryStore()}
	for _, driver := range []string{DriverSQLite, DriverSQLite3} {
		store, err := NewSQLiteStore(&SQLiteConfig{
			Driver:       driver,
			Path:         filepath.Join(t.TempDir(), "manifest.db"),
			MaxOpenConns: 2,
			WALMode:      true,
			BusyTimeout:  time.Second,
		})
		if err != nil {
			if driver == DriverSQLite3 && strings.Contains(err.Error(), "CGO_ENABLED") {
				t.Logf("skipping %s backend: %v", driver, err)
				continue
			}
			t.Fatalf("NewSQLiteStore(%s) error = %v", driver, err)
		}
		result[driver] = store
	}
	for _, s := range result {
		s := s
		t.Cleanup(func() { _ = s.Close() })
	}
	return result
}

func entry(path string, compiledAt time.Time, deps ...string) *Entry {
	return &Entry{
		ResourcePath:  path,
		Key:           "key:" + path,
		Mode:          "precompile",
		KeyMode:       "development",
		Dependencies:  deps,
		CompilationID: "id-" + path,
		Duration:      3 * time.Millisecond,
		CompiledAt:    compiledAt,
	}
}

func paths(entries []*Entry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.ResourcePath)
	}
	return out
}

func TestStore_RecordAndGet(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			want := entry("/t/page.twig", now, "./env.js", "/t/base.twig", "/t/partial.twig")
			want.OutputPath = "dist/page.js"
			if err := store.Record(ctx, want); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			got, err := store.Get(ctx, "/t/page.twig")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !got.CompiledAt.Equal(want.CompiledAt) {
				t.Errorf("CompiledAt = %v, want %v", got.CompiledAt, want.CompiledAt)
			}
			got.CompiledAt = want.CompiledAt
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}

			// Recording again replaces the dependency list.
			if err := store.Record(ctx, entry("/t/page.twig", now, "./env.js")); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			got, _ = store.Get(ctx, "/t/page.twig")
			if !reflect.DeepEqual(got.Dependencies, []string{"./env.js"}) {
				t.Errorf("Dependencies after re-record = %v", got.Dependencies)
			}

			if _, err := store.Get(ctx, "/t/missing.twig"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_RecordInvalid(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Record(context.Background(), &Entry{})
			var se *StorageError
			if !errors.As(err, &se) {
				t.Fatalf("Record() error = %v, want *StorageError", err)
			}
			if se.Operation != "record" {
				t.Errorf("Operation = %q, want record", se.Operation)
			}
		})
	}
}

func TestStore_Dependents(t *testing.T) {
	now := time.Now()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, e := range []*Entry{
				entry("/t/a.twig", now, "/t/base.twig", "/t/partial.twig"),
				entry("/t/b.twig", now, "/t/base.twig"),
				entry("/t/c.twig", now),
			} {
				if err := store.Record(ctx, e); err != nil {
					t.Fatal(err)
				}
			}

			tests := []struct {
				path string
				want []string
			}{
				{path: "/t/base.twig", want: []string{"/t/a.twig", "/t/b.twig"}},
				{path: "/t/partial.twig", want: []string{"/t/a.twig"}},
				{path: "/t/c.twig", want: []string{"/t/c.twig"}},
				{path: "/t/other.twig", want: []string{}},
			}
			for _, tt := range tests {
				got, err := store.Dependents(ctx, tt.path)
				if err != nil {
					t.Fatalf("Dependents(%s) error = %v", tt.path, err)
				}
				if !reflect.DeepEqual(paths(got), tt.want) {
					t.Errorf("Dependents(%s) = %v, want %v", tt.path, paths(got), tt.want)
				}
			}
		})
	}
}

func TestStore_ListDeletePrune(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, e := range []*Entry{
				entry("/t/b.twig", now, "/t/x.twig"),
				entry("/t/a.twig", old, "/t/x.twig"),
				entry("/t/c.twig", old),
			} {
				if err := store.Record(ctx, e); err != nil {
					t.Fatal(err)
				}
			}

			all, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{"/t/a.twig", "/t/b.twig", "/t/c.twig"}; !reflect.DeepEqual(paths(all), want) {
				t.Errorf("List() = %v, want %v", paths(all), want)
			}

			if err := store.Delete(ctx, "/t/c.twig"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := store.Delete(ctx, "/t/c.twig"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}

			deleted, err := store.Prune(ctx, now.Add(-time.Hour))
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != 1 {
				t.Errorf("Prune() deleted %d, want 1", deleted)
			}

			// Pruned entries no longer show up as dependents.
			dependents, _ := store.Dependents(ctx, "/t/x.twig")
			if want := []string{"/t/b.twig"}; !reflect.DeepEqual(paths(dependents), want) {
				t.Errorf("Dependents() after prune = %v, want %v", paths(dependents), want)
			}
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.db")
	cfg := &SQLiteConfig{Driver: DriverSQLite, Path: path, WALMode: true, BusyTimeout: time.Second}

	store, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Record(context.Background(), entry("/t/a.twig", time.Now(), "/t/b.twig")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	store, err = NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()

	got, err := store.Get(context.Background(), "/t/a.twig")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if !reflect.DeepEqual(got.Dependencies, []string{"/t/b.twig"}) {
		t.Errorf("Dependencies = %v", got.Dependencies)
	}
}

func TestNewSQLiteStore_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  *SQLiteConfig
	}{
		{name: "unknown driver", cfg: &SQLiteConfig{Driver: "postgres", Path: "x.db"}},
		{name: "empty path", cfg: &SQLiteConfig{Driver: DriverSQLite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSQLiteStore(tt.cfg); err == nil {
				t.Error("NewSQLiteStore() should fail")
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  *SQLiteConfig
		want string
	}{
		{
			name: "modernc",
			cfg:  &SQLiteConfig{Driver: DriverSQLite, Path: "m.db", WALMode: true, BusyTimeout: 5 * time.Second},
			want: "file:m.db?_pragma=busy_timeout%285000%29&_pragma=journal_mode%28WAL%29",
		},
		{
			name: "mattn",
			cfg:  &SQLiteConfig{Driver: DriverSQLite3, Path: "m.db", BusyTimeout: time.Second},
			want: "file:m.db?_busy_timeout=1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dsn(tt.cfg); got != tt.want {
				t.Errorf("dsn() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig().Manifest

	cfg.Enabled = false
	store, err := Open(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Open(disabled) = %T, want *MemoryStore", store)
	}

	cfg.Enabled = true
	cfg.Path = filepath.Join(t.TempDir(), "m.db")
	store, err = Open(&cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("Open() = %T, want *SQLiteStore", store)
	}
}

type fakeObserver struct {
	ops     []string
	entries int
}

func (o *fakeObserver) RecordManifestOperation(op string, err error, _ time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.ops = append(o.ops, op+":"+status)
}

func (o *fakeObserver) UpdateManifestEntries(n int) { o.entries = n }

func TestInstrument(t *testing.T) {
	obs := &fakeObserver{}
	store := Instrument(NewMemoryStore(), obs)
	ctx := context.Background()

	_ = store.Record(ctx, entry("/t/a.twig", time.Now()))
	_ = store.Record(ctx, &Entry{})
	_, _ = store.Get(ctx, "/t/missing.twig")
	_, _ = store.List(ctx)

	want := []string{"record:ok", "record:error", "get:ok", "list:ok"}
	if !reflect.DeepEqual(obs.ops, want) {
		t.Errorf("operations = %v, want %v", obs.ops, want)
	}
	if obs.entries != 1 {
		t.Errorf("entries = %d, want 1", obs.entries)
	}
}
