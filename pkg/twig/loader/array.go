package loader

import (
	"context"
	"sync"
)

// ArrayLoader loads templates from a map of name to source code.
type ArrayLoader struct {
	mu           sync.RWMutex
	templates    map[string]string
	pathSemantic bool
}

// NewArrayLoader creates an in-memory loader. The map is copied.
func NewArrayLoader(templates map[string]string) *ArrayLoader {
	l := &ArrayLoader{templates: make(map[string]string, len(templates))}
	for name, code := range templates {
		l.templates[name] = code
	}
	return l
}

// NewOverrideLoader creates an in-memory loader whose sources report their
// own name as their resolved name. Keys are expected to be real paths, so
// relative includes from an overridden source resolve against its directory.
func NewOverrideLoader(templates map[string]string) *ArrayLoader {
	l := NewArrayLoader(templates)
	l.pathSemantic = true
	return l
}

// SetTemplate adds or replaces a template.
func (l *ArrayLoader) SetTemplate(name, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = code
}

// Exists reports whether the map holds name.
func (l *ArrayLoader) Exists(ctx context.Context, name string, from *Source) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.templates[name]
	return ok, nil
}

// Resolve returns name itself when the map holds it.
func (l *ArrayLoader) Resolve(ctx context.Context, name string, from *Source) (string, error) {
	ok, _ := l.Exists(ctx, name, from)
	if !ok {
		return "", notFound(name)
	}
	return name, nil
}

// GetSource returns the in-memory source for name.
func (l *ArrayLoader) GetSource(ctx context.Context, name string, from *Source) (*Source, error) {
	l.mu.RLock()
	code, ok := l.templates[name]
	l.mu.RUnlock()
	if !ok {
		return nil, notFound(name)
	}

	resolved := ""
	if l.pathSemantic {
		resolved = name
	}
	return NewSource(code, name, resolved), nil
}
