package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MainNamespace is the namespace used for names without an "@ns/" prefix.
const MainNamespace = "__main__"

// FilesystemLoader loads templates from directories on disk.
type FilesystemLoader struct {
	mu       sync.RWMutex
	rootPath string
	paths    map[string][]string
	cache    map[string]string
}

// NewFilesystemLoader creates a loader searching paths in the main
// namespace. Relative paths are taken relative to rootPath (the working
// directory when rootPath is empty).
func NewFilesystemLoader(rootPath string, paths ...string) (*FilesystemLoader, error) {
	if rootPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		rootPath = wd
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", rootPath, err)
	}

	l := &FilesystemLoader{
		rootPath: abs,
		paths:    make(map[string][]string),
		cache:    make(map[string]string),
	}
	for _, p := range paths {
		if err := l.AddPath(p, MainNamespace); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AddPath appends a search path to namespace.
func (l *FilesystemLoader) AddPath(path, namespace string) error {
	if namespace == "" {
		namespace = MainNamespace
	}
	dir := path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(l.rootPath, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("template directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template directory %q is not a directory", dir)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths[namespace] = append(l.paths[namespace], filepath.Clean(dir))
	clear(l.cache)
	return nil
}

// Paths returns the search paths of namespace.
func (l *FilesystemLoader) Paths(namespace string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths[namespace]...)
}

// Namespaces returns the configured namespaces.
func (l *FilesystemLoader) Namespaces() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	namespaces := make([]string, 0, len(l.paths))
	for ns := range l.paths {
		namespaces = append(namespaces, ns)
	}
	return namespaces
}

// Exists reports whether name can be found.
func (l *FilesystemLoader) Exists(ctx context.Context, name string, from *Source) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := l.findTemplate(name, from)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Resolve returns the absolute path of name.
func (l *FilesystemLoader) Resolve(ctx context.Context, name string, from *Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.findTemplate(name, from)
}

// GetSource reads the template from disk.
func (l *FilesystemLoader) GetSource(ctx context.Context, name string, from *Source) (*Source, error) {
	path, err := l.Resolve(ctx, name, from)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", path, err)
	}
	return NewSource(string(data), name, path), nil
}

func (l *FilesystemLoader) findTemplate(name string, from *Source) (string, error) {
	name = normalizeName(name)
	if name == "" {
		return "", notFound(name)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("a template name cannot contain NUL bytes: %w", notFound(name))
	}

	if isRelative(name) {
		if from == nil || from.ResolvedName == "" {
			return "", notFound(name)
		}
		candidate := filepath.Join(filepath.Dir(from.ResolvedName), filepath.FromSlash(name))
		if isRegularFile(candidate) {
			return candidate, nil
		}
		return "", notFound(name, candidate)
	}

	if filepath.IsAbs(name) || filepath.IsAbs(filepath.FromSlash(name)) {
		candidate := filepath.Clean(filepath.FromSlash(name))
		if isRegularFile(candidate) {
			return candidate, nil
		}
		return "", notFound(name, candidate)
	}

	l.mu.RLock()
	cached, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	namespace, shortName, err := parseName(name)
	if err != nil {
		return "", err
	}
	if err := validateName(shortName); err != nil {
		return "", err
	}

	l.mu.RLock()
	paths := append([]string(nil), l.paths[namespace]...)
	l.mu.RUnlock()

	if len(paths) == 0 {
		return "", notFound(name)
	}

	tried := make([]string, 0, len(paths))
	for _, dir := range paths {
		candidate := filepath.Join(dir, filepath.FromSlash(shortName))
		tried = append(tried, dir)
		if isRegularFile(candidate) {
			l.mu.Lock()
			l.cache[name] = candidate
			l.mu.Unlock()
			return candidate, nil
		}
	}

	return "", notFound(name, tried...)
}

// normalizeName converts separators and collapses duplicate slashes.
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	for strings.Contains(name, "//") {
		name = strings.ReplaceAll(name, "//", "/")
	}
	return name
}

func isRelative(name string) bool {
	return strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
}

func parseName(name string) (string, string, error) {
	if !strings.HasPrefix(name, "@") {
		return MainNamespace, name, nil
	}
	pos := strings.Index(name, "/")
	if pos < 0 {
		return "", "", fmt.Errorf("malformed namespaced template name %q (expecting \"@namespace/template_name\"): %w", name, notFound(name))
	}
	return name[1:pos], name[pos+1:], nil
}

// validateName rejects names climbing above their search path.
func validateName(name string) error {
	level := 0
	for _, part := range strings.Split(strings.TrimLeft(name, "/"), "/") {
		switch part {
		case "", ".":
		case "..":
			level--
		default:
			level++
		}
		if level < 0 {
			return fmt.Errorf("looks like you try to load a template outside configured directories (%s): %w", name, notFound(name))
		}
	}
	return nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
