package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/twig/ast"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// ErrAlreadyVisited is returned when a visitor is asked to visit a second
// tree, or the same tree twice. Rewritten keys are not template names, so a
// second pass over them would be meaningless.
var ErrAlreadyVisited = errors.New("visitor has already visited a tree")

// FileChecker reports whether path is a real regular file.
type FileChecker func(path string) bool

// UnresolvedHook is called for every literal the loader does not know.
type UnresolvedHook func(ctx context.Context, name string, loc ast.Location)

// Reference records one rewritten constant.
type Reference struct {
	// Name is the literal found in the template.
	Name string `json:"name"`

	// Resolved is the path the loader resolved Name to.
	Resolved string `json:"resolved"`

	// Key is the value Name was replaced with.
	Key string `json:"key"`

	// Tracked is true when Resolved is a real file and thus a dependency.
	Tracked bool `json:"tracked"`

	// Line is the line of the literal in the template.
	Line int `json:"line"`
}

// Visitor discovers and rewrites the template references of one tree.
type Visitor struct {
	capability   loader.Capability
	from         *loader.Source
	derive       keys.Func
	isFile       FileChecker
	logger       *slog.Logger
	onUnresolved UnresolvedHook

	tree       *ast.Tree
	found      []string
	seen       map[string]struct{}
	references []Reference
}

// Option configures a Visitor.
type Option func(*Visitor)

// WithFileChecker replaces the real-file test.
func WithFileChecker(fn FileChecker) Option {
	return func(v *Visitor) {
		v.isFile = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Visitor) {
		v.logger = logger
	}
}

// WithUnresolvedHook registers a hook for literals the loader does not know.
// The visitor itself never fails on them.
func WithUnresolvedHook(hook UnresolvedHook) Option {
	return func(v *Visitor) {
		v.onUnresolved = hook
	}
}

// New creates a visitor resolving names as seen from the template at path
// from. derive maps normalized resolved paths to keys.
func New(capability loader.Capability, from string, derive keys.Func, opts ...Option) *Visitor {
	v := &Visitor{
		capability: capability,
		from:       loader.Identity(from),
		derive:     derive,
		isFile:     isRegularFile,
		seen:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default().With("component", "discovery.visitor")
	}
	return v
}

// Visit walks tree from its root. It may only be called once per visitor.
func (v *Visitor) Visit(ctx context.Context, tree *ast.Tree) error {
	return v.VisitNode(ctx, tree, tree.Root)
}

// VisitNode walks the subtree rooted at id. It may only be called once per
// visitor.
func (v *Visitor) VisitNode(ctx context.Context, tree *ast.Tree, id ast.NodeID) error {
	if v.tree != nil {
		return ErrAlreadyVisited
	}
	v.tree = tree
	return v.visit(ctx, id)
}

// FoundTemplateNames returns the resolved paths of the real files referenced
// by the tree, in order of first appearance.
func (v *Visitor) FoundTemplateNames() []string {
	return append([]string(nil), v.found...)
}

// References returns every rewritten constant in traversal order.
func (v *Visitor) References() []Reference {
	return append([]Reference(nil), v.references...)
}

func (v *Visitor) visit(ctx context.Context, id ast.NodeID) error {
	if !id.IsValid() {
		return nil
	}
	t := v.tree
	n := t.Node(id)

	switch n.Type {
	case ast.TypeExprFunction:
		if n.StringAttr(ast.AttrName) == "include" {
			if args, ok := n.Child(ast.ChildArguments); ok {
				// Named arguments only: there is no positional target.
				if target, ok := t.Child(args, "0"); ok {
					if err := v.processExpression(ctx, target); err != nil {
						return err
					}
				}
			}
		}

	case ast.TypeImport, ast.TypeInclude:
		if expr, ok := n.Child(ast.ChildExpr); ok {
			if err := v.processExpression(ctx, expr); err != nil {
				return err
			}
		}

	case ast.TypeModule:
		if parent, ok := n.Child(ast.ChildParent); ok {
			if err := v.processExpression(ctx, parent); err != nil {
				return err
			}
		}
		for _, embedded := range t.EmbeddedTemplates(id) {
			if err := v.visit(ctx, embedded); err != nil {
				return err
			}
		}
	}

	for _, c := range t.Children(id) {
		if err := v.visit(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// processExpression rewrites the constants of an expression believed to
// denote a template name.
func (v *Visitor) processExpression(ctx context.Context, id ast.NodeID) error {
	t := v.tree
	switch t.Type(id) {
	case ast.TypeNone:
		return nil

	case ast.TypeExprArray:
		// Keys and values alternate; only values are names.
		for i, c := range t.Children(id) {
			if i%2 == 1 {
				if err := v.processExpression(ctx, c.ID); err != nil {
					return err
				}
			}
		}

	case ast.TypeExprConditional:
		expr2, _ := t.Child(id, ast.ChildExpr2)
		if err := v.processExpression(ctx, expr2); err != nil {
			return err
		}
		expr3, _ := t.Child(id, ast.ChildExpr3)
		if err := v.processExpression(ctx, expr3); err != nil {
			return err
		}

	case ast.TypeExprConstant:
		return v.pushValue(ctx, id)
	}
	return nil
}

// pushValue resolves the constant id and replaces its value with a key.
func (v *Visitor) pushValue(ctx context.Context, id ast.NodeID) error {
	n := v.tree.Node(id)
	name, ok := n.Attrs[ast.AttrValue].(string)
	if !ok {
		return nil
	}

	exists, err := v.capability.Exists(ctx, name, v.from)
	if err != nil {
		return fmt.Errorf("failed to check template %q: %w", name, err)
	}
	if !exists {
		v.logger.Debug("reference left unresolved", "name", name, "line", n.Line)
		if v.onUnresolved != nil {
			v.onUnresolved(ctx, name, v.tree.Location(id))
		}
		return nil
	}

	resolved, err := v.capability.Resolve(ctx, name, v.from)
	if err != nil {
		return fmt.Errorf("failed to resolve template %q: %w", name, err)
	}

	tracked := v.isFile(resolved)
	if tracked {
		if _, dup := v.seen[resolved]; !dup {
			v.seen[resolved] = struct{}{}
			v.found = append(v.found, resolved)
		}
	}

	key := v.derive(keys.Normalize(resolved))
	n.SetAttr(ast.AttrValue, key)
	v.references = append(v.references, Reference{
		Name:     name,
		Resolved: resolved,
		Key:      key,
		Tracked:  tracked,
		Line:     n.Line,
	})
	v.logger.Debug("reference rewritten", "name", name, "resolved", resolved, "tracked", tracked)
	return nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
