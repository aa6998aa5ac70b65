package twig

import (
	"context"
	"fmt"

	"mercator-hq/twigpack/pkg/twig/ast"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// Template is a parsed template bound to an environment. Embedded templates
// share the tree of the template declaring them.
type Template struct {
	env    *Environment
	tree   *ast.Tree
	module ast.NodeID
	source *loader.Source
}

func newTemplate(env *Environment, tree *ast.Tree, module ast.NodeID, source *loader.Source) *Template {
	return &Template{env: env, tree: tree, module: module, source: source}
}

// Name returns the name the template was loaded under.
func (t *Template) Name() string {
	return t.source.Name
}

// Source returns the source identity of the template.
func (t *Template) Source() *loader.Source {
	return t.source
}

// Tree returns the parsed tree.
func (t *Template) Tree() *ast.Tree {
	return t.tree
}

// String implements fmt.Stringer.
func (t *Template) String() string {
	return t.Name()
}

// Render renders the template with vars merged over the environment globals.
func (t *Template) Render(ctx context.Context, vars map[string]any) (string, error) {
	context := t.env.snapshotGlobals()
	for k, v := range vars {
		context[k] = v
	}

	r := newRenderer(ctx, t.env)
	if err := r.display(t, context, nil); err != nil {
		return "", err
	}
	return r.out.String(), nil
}

// BlockNames returns the names of the blocks the template defines itself.
func (t *Template) BlockNames() []string {
	var names []string
	for _, c := range t.tree.Children(t.child(ast.ChildBlocks)) {
		names = append(names, c.Key)
	}
	return names
}

// MacroNames returns the names of the macros the template defines.
func (t *Template) MacroNames() []string {
	var names []string
	for _, c := range t.tree.Children(t.child(ast.ChildMacros)) {
		names = append(names, c.Key)
	}
	return names
}

func (t *Template) child(key string) ast.NodeID {
	id, _ := t.tree.Child(t.module, key)
	return id
}

func (t *Template) block(name string) (ast.NodeID, bool) {
	blocks := t.child(ast.ChildBlocks)
	if !blocks.IsValid() {
		return ast.NoNode, false
	}
	return t.tree.Child(blocks, name)
}

func (t *Template) macro(name string) (ast.NodeID, bool) {
	macros := t.child(ast.ChildMacros)
	if !macros.IsValid() {
		return ast.NoNode, false
	}
	return t.tree.Child(macros, name)
}

// embedded returns the embedded template with the given index. Embedded
// templates are always recorded on the root module of the tree.
func (t *Template) embedded(index int) (*Template, error) {
	ids := t.tree.EmbeddedTemplates(t.tree.Root)
	if index < 0 || index >= len(ids) {
		return nil, fmt.Errorf("template %q has no embedded template %d", t.Name(), index)
	}
	return newTemplate(t.env, t.tree, ids[index], t.source), nil
}
