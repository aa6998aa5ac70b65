package loader

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when no loader can find a template.
var ErrNotFound = errors.New("template not found")

// Source is the code of a template together with its identity.
type Source struct {
	// Code is the template source text.
	Code string

	// Name is the name the template was requested under.
	Name string

	// ResolvedName is the concrete location of the template (an absolute
	// path for filesystem templates). Relative names are resolved against it.
	ResolvedName string
}

// NewSource creates a source.
func NewSource(code, name, resolvedName string) *Source {
	return &Source{Code: code, Name: name, ResolvedName: resolvedName}
}

// Identity returns a source carrying only the identity of path, for use as
// the "from" argument of lookups made on behalf of that template.
func Identity(path string) *Source {
	return &Source{Name: path, ResolvedName: path}
}

// Capability is the contract needed to test whether a literal names a real
// template and to resolve it.
type Capability interface {
	// Exists reports whether name can be loaded from the template from.
	Exists(ctx context.Context, name string, from *Source) (bool, error)

	// Resolve returns the concrete location of name as seen from from.
	Resolve(ctx context.Context, name string, from *Source) (string, error)
}

// Loader is a Capability that can also return template sources.
type Loader interface {
	Capability

	// GetSource returns the source of name as seen from from.
	GetSource(ctx context.Context, name string, from *Source) (*Source, error)
}

// NotFoundError describes a failed lookup.
type NotFoundError struct {
	Name  string
	Tried []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("unable to find template %q", e.Name)
	}
	return fmt.Sprintf("unable to find template %q (looked into: %v)", e.Name, e.Tried)
}

// Unwrap lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func notFound(name string, tried ...string) error {
	return &NotFoundError{Name: name, Tried: tried}
}
