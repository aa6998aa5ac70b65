package build

import (
	"errors"
	"fmt"
)

// Compilation phases, used in errors, metrics and spans.
const (
	PhaseEnvironment = "environment"
	PhaseParse       = "parse"
	PhaseDiscover    = "discover"
	PhaseCodegen     = "codegen"
	PhaseRender      = "render"
)

// ErrNoModulePath is returned by New when no environment module path is
// configured.
var ErrNoModulePath = errors.New("environment module path is required")

// CompileError is a failed compilation of one entry.
type CompileError struct {
	// Entry is the resource path of the entry.
	Entry string

	// Phase is the phase that failed.
	Phase string

	// Err is the underlying error. Parse failures are *errors.Error values
	// from the template package and are surfaced unchanged.
	Err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s (%s): %v", e.Entry, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsParseFailure reports whether err is a compilation that failed while
// tokenizing or parsing the entry.
func IsParseFailure(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Phase == PhaseParse
}

func phaseError(entry, phase string, err error) *CompileError {
	return &CompileError{Entry: entry, Phase: phase, Err: err}
}
