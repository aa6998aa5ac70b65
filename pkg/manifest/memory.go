package manifest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	entries map[string]*Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Record stores a copy of e.
func (s *MemoryStore) Record(ctx context.Context, e *Entry) error {
	if err := validateEntry(e); err != nil {
		return NewStorageError("memory", "record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := e.clone()
	if c.CompiledAt.IsZero() {
		c.CompiledAt = time.Now()
	}
	s.entries[e.ResourcePath] = c
	return nil
}

// Get returns a copy of the entry for resourcePath.
func (s *MemoryStore) Get(ctx context.Context, resourcePath string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[resourcePath]
	if !ok {
		return nil, ErrNotFound
	}
	return e.clone(), nil
}

// List returns copies of every entry.
func (s *MemoryStore) List(ctx context.Context) ([]*Entry, error) {
	return s.filter(func(*Entry) bool { return true }), nil
}

// Dependents returns copies of the entries depending on path.
func (s *MemoryStore) Dependents(ctx context.Context, path string) ([]*Entry, error) {
	return s.filter(func(e *Entry) bool { return e.DependsOn(path) }), nil
}

// Delete removes the entry for resourcePath.
func (s *MemoryStore) Delete(ctx context.Context, resourcePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[resourcePath]; !ok {
		return ErrNotFound
	}
	delete(s.entries, resourcePath)
	return nil
}

// Prune removes the entries compiled before olderThan.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for path, e := range s.entries {
		if e.CompiledAt.Before(olderThan) {
			delete(s.entries, path)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) filter(keep func(*Entry) bool) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []*Entry{}
	for _, e := range s.entries {
		if keep(e) {
			entries = append(entries, e.clone())
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ResourcePath < entries[j].ResourcePath
	})
	return entries
}
