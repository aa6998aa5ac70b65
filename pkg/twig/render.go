package twig

import (
	"context"
	"errors"
	"strings"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// frame is the state statements of one template execute in.
type frame struct {
	tmpl   *Template
	vars   map[string]any
	blocks blockMap
}

// blockDef is one definition of a block.
type blockDef struct {
	tmpl *Template
	node ast.NodeID
}

// blockMap maps block names to their definitions, most derived first.
type blockMap map[string][]blockDef

type blockFrame struct {
	name  string
	chain []blockDef
	index int
}

// renderer executes templates into a buffer.
type renderer struct {
	ctx        context.Context
	env        *Environment
	out        *strings.Builder
	escaping   []string
	depth      int
	blockStack []blockFrame
}

func newRenderer(ctx context.Context, env *Environment) *renderer {
	return &renderer{
		ctx:      ctx,
		env:      env,
		out:      &strings.Builder{},
		escaping: []string{env.autoescape},
	}
}

// display renders t with vars. blocks holds the block definitions of the
// templates extending t.
func (r *renderer) display(t *Template, vars map[string]any, blocks blockMap) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.env.maxNesting {
		return twigerrors.Runtime(t.tree.Location(t.module), "Maximum template nesting level of %d reached", r.env.maxNesting)
	}

	merged := make(blockMap, len(blocks))
	for name, chain := range blocks {
		merged[name] = chain
	}
	for _, c := range t.tree.Children(t.child(ast.ChildBlocks)) {
		chain := append([]blockDef(nil), merged[c.Key]...)
		merged[c.Key] = append(chain, blockDef{tmpl: t, node: c.ID})
	}

	f := &frame{tmpl: t, vars: vars, blocks: merged}
	body := t.child(ast.ChildBody)

	parentExpr, hasParent := t.tree.Child(t.module, ast.ChildParent)
	if !hasParent {
		return r.exec(f, body)
	}

	// A child template only runs its statements; output comes from blocks.
	for _, c := range t.tree.Children(body) {
		switch t.tree.Type(c.ID) {
		case ast.TypeText, ast.TypePrint, ast.TypeBlockReference:
			continue
		}
		if err := r.exec(f, c.ID); err != nil {
			return err
		}
	}

	target, err := r.eval(f, parentExpr)
	if err != nil {
		return err
	}
	parent, err := r.resolveTemplate(f, target, parentExpr, false)
	if err != nil {
		return err
	}
	return r.display(parent, vars, merged)
}

func (r *renderer) exec(f *frame, id ast.NodeID) error {
	if !id.IsValid() {
		return nil
	}
	t := f.tmpl.tree
	n := t.Node(id)

	switch n.Type {
	case ast.TypeNone:
		for _, c := range n.Children {
			if err := r.exec(f, c.ID); err != nil {
				return err
			}
		}

	case ast.TypeText:
		r.out.WriteString(n.StringAttr(ast.AttrData))

	case ast.TypePrint:
		expr, _ := n.Child(ast.ChildExpr)
		v, err := r.eval(f, expr)
		if err != nil {
			return err
		}
		return r.write(f, id, v)

	case ast.TypeIf:
		return r.execIf(f, n)

	case ast.TypeFor:
		return r.execFor(f, id, n)

	case ast.TypeSet:
		return r.execSet(f, n)

	case ast.TypeBlockReference:
		return r.renderBlock(f, id, n.StringAttr(ast.AttrName), 0)

	case ast.TypeImport:
		return r.execImport(f, id, n)

	case ast.TypeInclude:
		expr, _ := n.Child(ast.ChildExpr)
		target, err := r.eval(f, expr)
		if err != nil {
			return err
		}
		out, err := r.include(f, id, target, n)
		if err != nil {
			return err
		}
		r.out.WriteString(out)

	case ast.TypeEmbed:
		idx, _ := n.Attrs[ast.AttrIndex].(int)
		embedded, err := f.tmpl.embedded(idx)
		if err != nil {
			return twigerrors.Runtime(t.Location(id), "%v", err)
		}
		out, err := r.include(f, id, embedded, n)
		if err != nil {
			return err
		}
		r.out.WriteString(out)

	case ast.TypeWith:
		return r.execWith(f, n)

	case ast.TypeAutoescape:
		body, _ := n.Child(ast.ChildBody)
		r.escaping = append(r.escaping, n.StringAttr(ast.AttrStrategy))
		err := r.exec(f, body)
		r.escaping = r.escaping[:len(r.escaping)-1]
		return err

	case ast.TypeDo:
		expr, _ := n.Child(ast.ChildExpr)
		_, err := r.eval(f, expr)
		return err

	case ast.TypeMacro, ast.TypeBlock, ast.TypeModule:
		// Declarations are reached through their module.

	default:
		return twigerrors.Runtime(t.Location(id), "Unexpected %s node in statement position", n.Type)
	}
	return nil
}

func (r *renderer) write(f *frame, id ast.NodeID, v any) error {
	strategy := r.escaping[len(r.escaping)-1]
	if strategy == "" {
		r.out.WriteString(toString(v))
		return nil
	}
	escaped, err := escape(v, strategy)
	if err != nil {
		return twigerrors.Runtime(f.tmpl.tree.Location(id), "%v", err)
	}
	r.out.WriteString(string(escaped))
	return nil
}

func (r *renderer) execIf(f *frame, n *ast.Node) error {
	t := f.tmpl.tree
	tests, _ := n.Child(ast.ChildTests)
	children := t.Children(tests)
	for i := 0; i+1 < len(children); i += 2 {
		cond, err := r.eval(f, children[i].ID)
		if err != nil {
			return err
		}
		if truthy(cond) {
			return r.exec(f, children[i+1].ID)
		}
	}
	if elseBody, ok := n.Child(ast.ChildElse); ok {
		return r.exec(f, elseBody)
	}
	return nil
}

func (r *renderer) execFor(f *frame, id ast.NodeID, n *ast.Node) error {
	seqExpr, _ := n.Child(ast.ChildSeq)
	seq, err := r.eval(f, seqExpr)
	if err != nil {
		return err
	}
	pairs, ok := iterate(seq)
	if !ok {
		pairs = nil
	}

	keyTarget := n.StringAttr(ast.AttrKeyTarget)
	valueTarget := n.StringAttr(ast.AttrValueTarget)

	scope := cloneVars(f.vars)
	loopFrame := &frame{tmpl: f.tmpl, vars: scope, blocks: f.blocks}
	body, _ := n.Child(ast.ChildBody)

	for i, p := range pairs {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if keyTarget != "" {
			scope[keyTarget] = p.key
		}
		scope[valueTarget] = p.value
		scope["loop"] = map[string]any{
			"index":     int64(i + 1),
			"index0":    int64(i),
			"revindex":  int64(len(pairs) - i),
			"revindex0": int64(len(pairs) - i - 1),
			"first":     i == 0,
			"last":      i == len(pairs)-1,
			"length":    int64(len(pairs)),
			"parent":    f.vars,
		}
		if err := r.exec(loopFrame, body); err != nil {
			return err
		}
	}

	if len(pairs) == 0 {
		if elseBody, ok := n.Child(ast.ChildElse); ok {
			if err := r.exec(f, elseBody); err != nil {
				return err
			}
		}
	}

	// Variables that existed before the loop keep their new values; loop
	// targets and variables introduced inside the loop are dropped.
	for k := range f.vars {
		if k == keyTarget || k == valueTarget || k == "loop" {
			continue
		}
		if v, ok := scope[k]; ok {
			f.vars[k] = v
		}
	}
	return nil
}

func (r *renderer) execSet(f *frame, n *ast.Node) error {
	names, _ := n.Attrs[ast.AttrNames].([]string)

	if n.BoolAttr(ast.AttrCapture) {
		body, _ := n.Child(ast.ChildBody)
		out, err := r.capture(func() error { return r.exec(f, body) })
		if err != nil {
			return err
		}
		f.vars[names[0]] = Markup(out)
		return nil
	}

	valuesNode, _ := n.Child(ast.ChildValues)
	values := f.tmpl.tree.Children(valuesNode)
	evaluated := make([]any, len(values))
	for i, c := range values {
		v, err := r.eval(f, c.ID)
		if err != nil {
			return err
		}
		evaluated[i] = v
	}
	for i, name := range names {
		f.vars[name] = evaluated[i]
	}
	return nil
}

func (r *renderer) execImport(f *frame, id ast.NodeID, n *ast.Node) error {
	expr, _ := n.Child(ast.ChildExpr)
	target, err := r.eval(f, expr)
	if err != nil {
		return err
	}
	tmpl, err := r.resolveTemplate(f, target, id, false)
	if err != nil {
		return err
	}

	if alias := n.StringAttr(ast.AttrName); alias != "" {
		f.vars[alias] = tmpl
	}
	if macros, ok := n.Attrs[ast.AttrMacros].([]ast.MacroAlias); ok {
		for _, m := range macros {
			if _, ok := tmpl.macro(m.Name); !ok {
				return twigerrors.Runtime(f.tmpl.tree.Location(id), "Macro %q is not defined in template %q", m.Name, tmpl.Name())
			}
			f.vars[m.Alias] = &boundMacro{tmpl: tmpl, name: m.Name}
		}
	}
	return nil
}

func (r *renderer) execWith(f *frame, n *ast.Node) error {
	vars := make(map[string]any)
	if !n.BoolAttr(ast.AttrOnly) {
		vars = cloneVars(f.vars)
	}
	if varsExpr, ok := n.Child(ast.ChildVariables); ok {
		v, err := r.eval(f, varsExpr)
		if err != nil {
			return err
		}
		if err := mergeVars(vars, v); err != nil {
			return twigerrors.Runtime(f.tmpl.tree.Location(varsExpr), "Variables passed to the \"with\" tag must be a mapping")
		}
	}
	body, _ := n.Child(ast.ChildBody)
	return r.exec(&frame{tmpl: f.tmpl, vars: vars, blocks: f.blocks}, body)
}

// renderBlock renders definition index of the block name.
func (r *renderer) renderBlock(f *frame, id ast.NodeID, name string, index int) error {
	chain := f.blocks[name]
	if index >= len(chain) {
		if index == 0 {
			return nil
		}
		return twigerrors.Runtime(f.tmpl.tree.Location(id), "Block %q should not call parent() as no parent defines it", name)
	}

	def := chain[index]
	r.blockStack = append(r.blockStack, blockFrame{name: name, chain: chain, index: index})
	defer func() { r.blockStack = r.blockStack[:len(r.blockStack)-1] }()

	body, _ := def.tmpl.tree.Child(def.node, ast.ChildBody)
	return r.exec(&frame{tmpl: def.tmpl, vars: cloneVars(f.vars), blocks: f.blocks}, body)
}

// include renders target for an include or embed node n.
func (r *renderer) include(f *frame, id ast.NodeID, target any, n *ast.Node) (string, error) {
	ignoreMissing := n.BoolAttr(ast.AttrIgnoreMissing)
	tmpl, err := r.resolveTemplate(f, target, id, ignoreMissing)
	if err != nil || tmpl == nil {
		return "", err
	}

	vars := make(map[string]any)
	if !n.BoolAttr(ast.AttrOnly) {
		vars = cloneVars(f.vars)
	}
	if varsExpr, ok := n.Child(ast.ChildVariables); ok {
		v, err := r.eval(f, varsExpr)
		if err != nil {
			return "", err
		}
		if err := mergeVars(vars, v); err != nil {
			return "", twigerrors.Runtime(f.tmpl.tree.Location(varsExpr), "Variables passed to %q must be a mapping", tmpl.Name())
		}
	}

	return r.capture(func() error { return r.display(tmpl, vars, nil) })
}

// resolveTemplate turns a template reference value into a template. Lists
// are fallback chains: the first loadable entry wins.
func (r *renderer) resolveTemplate(f *frame, target any, id ast.NodeID, ignoreMissing bool) (*Template, error) {
	loc := f.tmpl.tree.Location(id)

	switch v := target.(type) {
	case *Template:
		return v, nil
	case nil:
		if ignoreMissing {
			return nil, nil
		}
		return nil, twigerrors.Runtime(loc, "Template name cannot be null")
	case string, Markup:
		tmpl, err := r.env.LoadTemplate(r.ctx, toString(v), f.tmpl.source)
		if err != nil {
			if ignoreMissing && errors.Is(err, loader.ErrNotFound) {
				return nil, nil
			}
			return nil, locate(err, loc)
		}
		return tmpl, nil
	}

	if !isIterable(target) {
		return r.resolveTemplate(f, toString(target), id, ignoreMissing)
	}

	var names []string
	for _, candidate := range toList(target) {
		if tmpl, ok := candidate.(*Template); ok {
			return tmpl, nil
		}
		name := toString(candidate)
		names = append(names, name)
		tmpl, err := r.env.LoadTemplate(r.ctx, name, f.tmpl.source)
		if err == nil {
			return tmpl, nil
		}
		if !errors.Is(err, loader.ErrNotFound) {
			return nil, locate(err, loc)
		}
	}
	if ignoreMissing {
		return nil, nil
	}
	return nil, twigerrors.Loader(loc, loader.ErrNotFound, "Unable to find one of the following templates: %q", names)
}

// capture runs fn with output redirected and returns what it wrote.
func (r *renderer) capture(fn func() error) (string, error) {
	saved := r.out
	r.out = &strings.Builder{}
	err := fn()
	out := r.out.String()
	r.out = saved
	return out, err
}

// locate fills in the location of template errors raised without one.
func locate(err error, loc ast.Location) error {
	var te *twigerrors.Error
	if errors.As(err, &te) && !te.Location.IsValid() {
		te.Location = loc
	}
	return err
}

func cloneVars(vars map[string]any) map[string]any {
	clone := make(map[string]any, len(vars))
	for k, v := range vars {
		clone[k] = v
	}
	return clone
}

// mergeVars copies the entries of a mapping value into vars.
func mergeVars(vars map[string]any, v any) error {
	switch m := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, val := range m {
			vars[k] = val
		}
		return nil
	case *Hash:
		for _, k := range m.keys {
			vars[k] = m.values[k]
		}
		return nil
	}
	if isList(v) {
		if length(v) == 0 {
			return nil
		}
		return errors.New("not a mapping")
	}
	pairs, ok := iterate(v)
	if !ok {
		return errors.New("not a mapping")
	}
	for _, p := range pairs {
		vars[toString(p.key)] = p.value
	}
	return nil
}
