package manifest

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no entry is recorded for a resource path.
var ErrNotFound = errors.New("manifest entry not found")

// Entry is the record of the last successful compilation of one entry.
type Entry struct {
	// ResourcePath is the normalized path of the entry template.
	ResourcePath string `json:"resource_path"`

	// Key is the key the entry was registered under.
	Key string `json:"key"`

	// Mode is the compilation mode ("precompile" or "direct-render").
	Mode string `json:"mode"`

	// KeyMode is the key derivation mode ("development" or "production").
	KeyMode string `json:"key_mode"`

	// OutputPath is where the generated module was written, if anywhere.
	OutputPath string `json:"output_path,omitempty"`

	// Dependencies are the files the compilation registered, in order.
	Dependencies []string `json:"dependencies"`

	// CompilationID identifies the compilation in logs and traces.
	CompilationID string `json:"compilation_id"`

	// Duration is the wall time of the compilation.
	Duration time.Duration `json:"duration"`

	// CompiledAt is when the compilation finished.
	CompiledAt time.Time `json:"compiled_at"`
}

// DependsOn reports whether path is the entry itself or one of its
// dependencies.
func (e *Entry) DependsOn(path string) bool {
	if e.ResourcePath == path {
		return true
	}
	for _, dep := range e.Dependencies {
		if dep == path {
			return true
		}
	}
	return false
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Dependencies = append([]string(nil), e.Dependencies...)
	return &c
}

// Store persists manifest entries. Implementations are safe for concurrent
// use.
type Store interface {
	// Record inserts or replaces the entry for e.ResourcePath.
	Record(ctx context.Context, e *Entry) error

	// Get returns the entry for resourcePath or ErrNotFound.
	Get(ctx context.Context, resourcePath string) (*Entry, error)

	// List returns every entry ordered by resource path.
	List(ctx context.Context) ([]*Entry, error)

	// Dependents returns the entries whose resource path or dependency list
	// contains path, ordered by resource path.
	Dependents(ctx context.Context, path string) ([]*Entry, error)

	// Delete removes the entry for resourcePath. Deleting a missing entry
	// returns ErrNotFound.
	Delete(ctx context.Context, resourcePath string) error

	// Prune removes the entries compiled before olderThan and returns how
	// many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases the resources held by the store.
	Close() error
}
