package twig

import (
	"context"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
)

// FilterFunc implements a filter. value is the filtered expression.
type FilterFunc func(call *Call, value any) (any, error)

// FunctionFunc implements a function.
type FunctionFunc func(call *Call) (any, error)

// TestFunc implements a test.
type TestFunc func(call *Call, value any) (bool, error)

// Call carries the arguments and rendering state of a filter, function or
// test invocation.
type Call struct {
	r    *renderer
	f    *frame
	node ast.NodeID

	// Args holds the positional arguments.
	Args []any

	// Named holds the named arguments.
	Named map[string]any
}

// Arg returns positional argument i, else the named argument name, else def.
func (c *Call) Arg(i int, name string, def any) any {
	if i < len(c.Args) {
		return c.Args[i]
	}
	if v, ok := c.Named[name]; ok {
		return v
	}
	return def
}

// Context returns the context of the render.
func (c *Call) Context() context.Context {
	return c.r.ctx
}

// Environment returns the rendering environment.
func (c *Call) Environment() *Environment {
	return c.r.env
}

// Escaping returns the escaping strategy in effect.
func (c *Call) Escaping() string {
	return c.r.escaping[len(c.r.escaping)-1]
}

// Errorf returns a runtime error located at the call.
func (c *Call) Errorf(format string, args ...any) error {
	return twigerrors.Runtime(c.f.tmpl.tree.Location(c.node), format, args...)
}
