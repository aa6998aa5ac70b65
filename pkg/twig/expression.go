package twig

import (
	"math"
	"regexp"
	"strings"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
)

// boundMacro is a macro imported with "from ... import".
type boundMacro struct {
	tmpl *Template
	name string
}

func (r *renderer) eval(f *frame, id ast.NodeID) (any, error) {
	if !id.IsValid() {
		return nil, nil
	}
	t := f.tmpl.tree
	n := t.Node(id)

	switch n.Type {
	case ast.TypeExprConstant:
		return n.Attrs[ast.AttrValue], nil

	case ast.TypeExprName:
		v, defined := r.lookup(f, n.StringAttr(ast.AttrName))
		if !defined && r.env.strictVariables {
			return nil, twigerrors.Runtime(t.Location(id), "Variable %q does not exist", n.StringAttr(ast.AttrName))
		}
		return v, nil

	case ast.TypeExprArray:
		list := make([]any, 0, len(n.Children)/2)
		for i := 1; i < len(n.Children); i += 2 {
			v, err := r.eval(f, n.Children[i].ID)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case ast.TypeExprHash:
		h := NewHash()
		for i := 0; i+1 < len(n.Children); i += 2 {
			k, err := r.eval(f, n.Children[i].ID)
			if err != nil {
				return nil, err
			}
			v, err := r.eval(f, n.Children[i+1].ID)
			if err != nil {
				return nil, err
			}
			h.Set(toString(k), v)
		}
		return h, nil

	case ast.TypeExprConditional:
		expr1, _ := n.Child(ast.ChildExpr1)
		cond, err := r.eval(f, expr1)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			expr2, _ := n.Child(ast.ChildExpr2)
			return r.eval(f, expr2)
		}
		expr3, _ := n.Child(ast.ChildExpr3)
		return r.eval(f, expr3)

	case ast.TypeExprFunction:
		return r.evalFunction(f, id, n)

	case ast.TypeExprFilter:
		return r.evalFilter(f, id, n)

	case ast.TypeExprTest:
		return r.evalTest(f, id, n)

	case ast.TypeExprGetAttr:
		v, defined, err := r.evalGetAttr(f, id, n)
		if err != nil {
			return nil, err
		}
		if !defined && r.env.strictVariables {
			attrNode, _ := n.Child(ast.ChildAttribute)
			attr, _ := r.eval(f, attrNode)
			return nil, twigerrors.Runtime(t.Location(id), "Key %q does not exist", toString(attr))
		}
		return v, nil

	case ast.TypeExprBinary:
		return r.evalBinary(f, id, n)

	case ast.TypeExprUnary:
		return r.evalUnary(f, id, n)

	case ast.TypeExprParent:
		return r.evalParent(f, id, n)
	}

	return nil, twigerrors.Runtime(t.Location(id), "Unexpected %s node in expression position", n.Type)
}

// probe evaluates id reporting whether it is defined instead of failing on
// undefined variables or attributes.
func (r *renderer) probe(f *frame, id ast.NodeID) (any, bool, error) {
	n := f.tmpl.tree.Node(id)
	switch n.Type {
	case ast.TypeExprName:
		v, defined := r.lookup(f, n.StringAttr(ast.AttrName))
		return v, defined, nil
	case ast.TypeExprGetAttr:
		return r.evalGetAttr(f, id, n)
	}
	v, err := r.eval(f, id)
	return v, true, err
}

func (r *renderer) lookup(f *frame, name string) (any, bool) {
	switch name {
	case "_self":
		return f.tmpl, true
	case "_context":
		return cloneVars(f.vars), true
	}
	v, ok := f.vars[name]
	return v, ok
}

// arguments evaluates an argument list node.
func (r *renderer) arguments(f *frame, args ast.NodeID) ([]any, map[string]any, error) {
	var positional []any
	var named map[string]any
	for _, c := range f.tmpl.tree.Children(args) {
		v, err := r.eval(f, c.ID)
		if err != nil {
			return nil, nil, err
		}
		if isPositionalKey(c.Key) {
			positional = append(positional, v)
			continue
		}
		if named == nil {
			named = make(map[string]any)
		}
		named[c.Key] = v
	}
	return positional, named, nil
}

func (r *renderer) newCall(f *frame, id ast.NodeID, n *ast.Node) (*Call, error) {
	argsNode, _ := n.Child(ast.ChildArguments)
	args, named, err := r.arguments(f, argsNode)
	if err != nil {
		return nil, err
	}
	return &Call{r: r, f: f, node: id, Args: args, Named: named}, nil
}

func (r *renderer) evalFunction(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	name := n.StringAttr(ast.AttrName)
	call, err := r.newCall(f, id, n)
	if err != nil {
		return nil, err
	}

	if m, ok := f.vars[name].(*boundMacro); ok {
		return r.callMacro(f, id, m.tmpl, m.name, call.Args, call.Named)
	}

	fn, ok := r.env.function(name)
	if !ok {
		err := twigerrors.Runtime(f.tmpl.tree.Location(id), "Unknown %q function", name)
		if s := twigerrors.SuggestName("function", name, r.env.Functions()); s != "" {
			err = err.WithSuggestion(s)
		}
		return nil, err
	}
	return fn(call)
}

func (r *renderer) evalFilter(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	name := n.StringAttr(ast.AttrName)
	fn, ok := r.env.filter(name)
	if !ok {
		err := twigerrors.Runtime(f.tmpl.tree.Location(id), "Unknown %q filter", name)
		if s := twigerrors.SuggestName("filter", name, r.env.Filters()); s != "" {
			err = err.WithSuggestion(s)
		}
		return nil, err
	}

	node, _ := n.Child(ast.ChildNode)
	var value any
	var err error
	if name == "default" {
		// default must not fail on undefined input.
		var defined bool
		value, defined, err = r.probe(f, node)
		if !defined {
			value = nil
		}
	} else {
		value, err = r.eval(f, node)
	}
	if err != nil {
		return nil, err
	}

	call, err := r.newCall(f, id, n)
	if err != nil {
		return nil, err
	}
	return fn(call, value)
}

func (r *renderer) evalTest(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	name := n.StringAttr(ast.AttrName)
	node, _ := n.Child(ast.ChildNode)

	if name == "defined" {
		_, defined, err := r.probe(f, node)
		return defined, err
	}

	fn, ok := r.env.test(name)
	if !ok {
		err := twigerrors.Runtime(f.tmpl.tree.Location(id), "Unknown %q test", name)
		if s := twigerrors.SuggestName("test", name, r.env.Tests()); s != "" {
			err = err.WithSuggestion(s)
		}
		return nil, err
	}

	value, err := r.eval(f, node)
	if err != nil {
		return nil, err
	}
	call, err := r.newCall(f, id, n)
	if err != nil {
		return nil, err
	}
	return fn(call, value)
}

func (r *renderer) evalGetAttr(f *frame, id ast.NodeID, n *ast.Node) (any, bool, error) {
	node, _ := n.Child(ast.ChildNode)
	obj, defined, err := r.probe(f, node)
	if err != nil {
		return nil, false, err
	}
	if !defined {
		if r.env.strictVariables && f.tmpl.tree.Type(node) == ast.TypeExprName {
			return nil, false, twigerrors.Runtime(f.tmpl.tree.Location(node), "Variable %q does not exist", f.tmpl.tree.StringAttr(node, ast.AttrName))
		}
		return nil, false, nil
	}

	attrNode, _ := n.Child(ast.ChildAttribute)
	attr, err := r.eval(f, attrNode)
	if err != nil {
		return nil, false, err
	}

	callType := n.StringAttr(ast.AttrCallType)
	var args []any
	var named map[string]any
	if argsNode, ok := n.Child(ast.ChildArguments); ok {
		if args, named, err = r.arguments(f, argsNode); err != nil {
			return nil, false, err
		}
	}

	if tmpl, ok := obj.(*Template); ok && callType != ast.CallArray {
		v, err := r.callMacro(f, id, tmpl, toString(attr), args, named)
		return v, err == nil, err
	}

	v, found, err := getAttribute(obj, attr, callType, args)
	if err != nil {
		return nil, false, twigerrors.Runtime(f.tmpl.tree.Location(id), "%v", err)
	}
	return v, found, nil
}

func (r *renderer) callMacro(f *frame, id ast.NodeID, tmpl *Template, name string, args []any, named map[string]any) (any, error) {
	macroID, ok := tmpl.macro(name)
	if !ok {
		return nil, twigerrors.Runtime(f.tmpl.tree.Location(id), "Macro %q is not defined in template %q", name, tmpl.Name())
	}

	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.env.maxNesting {
		return nil, twigerrors.Runtime(f.tmpl.tree.Location(id), "Maximum template nesting level of %d reached", r.env.maxNesting)
	}

	vars := r.env.snapshotGlobals()
	macroFrame := &frame{tmpl: tmpl, vars: vars}

	params, _ := tmpl.tree.Child(macroID, ast.ChildArguments)
	paramList := tmpl.tree.Children(params)
	for i, p := range paramList {
		switch {
		case i < len(args):
			vars[p.Key] = args[i]
		default:
			if v, ok := named[p.Key]; ok {
				vars[p.Key] = v
				continue
			}
			def, err := r.eval(macroFrame, p.ID)
			if err != nil {
				return nil, err
			}
			vars[p.Key] = def
		}
	}
	var varargs []any
	if len(args) > len(paramList) {
		varargs = args[len(paramList):]
	}
	vars["varargs"] = varargs

	body, _ := tmpl.tree.Child(macroID, ast.ChildBody)
	saved := r.escaping
	r.escaping = []string{r.env.autoescape}
	out, err := r.capture(func() error { return r.exec(macroFrame, body) })
	r.escaping = saved
	if err != nil {
		return nil, err
	}
	return Markup(out), nil
}

func (r *renderer) evalParent(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	name := n.StringAttr(ast.AttrName)
	for i := len(r.blockStack) - 1; i >= 0; i-- {
		bf := r.blockStack[i]
		if bf.name != name {
			continue
		}
		out, err := r.capture(func() error { return r.renderBlock(f, id, name, bf.index+1) })
		if err != nil {
			return nil, err
		}
		return Markup(out), nil
	}
	return nil, twigerrors.Runtime(f.tmpl.tree.Location(id), "Calling \"parent\" outside a block is forbidden")
}

func (r *renderer) evalUnary(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	node, _ := n.Child(ast.ChildNode)
	v, err := r.eval(f, node)
	if err != nil {
		return nil, err
	}
	switch n.StringAttr(ast.AttrOperator) {
	case "not":
		return !truthy(v), nil
	case "-":
		if isIntegral(v) {
			i, _, _ := toNumber(v)
			return -i, nil
		}
		return -toFloat(v), nil
	case "+":
		if isIntegral(v) {
			i, _, _ := toNumber(v)
			return i, nil
		}
		return toFloat(v), nil
	}
	return nil, twigerrors.Runtime(f.tmpl.tree.Location(id), "Unknown unary operator %q", n.StringAttr(ast.AttrOperator))
}

func (r *renderer) evalBinary(f *frame, id ast.NodeID, n *ast.Node) (any, error) {
	op := n.StringAttr(ast.AttrOperator)
	leftNode, _ := n.Child(ast.ChildLeft)
	rightNode, _ := n.Child(ast.ChildRight)

	switch op {
	case "and", "or":
		left, err := r.eval(f, leftNode)
		if err != nil {
			return nil, err
		}
		if op == "and" && !truthy(left) {
			return false, nil
		}
		if op == "or" && truthy(left) {
			return true, nil
		}
		right, err := r.eval(f, rightNode)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil

	case "??":
		left, defined, err := r.probe(f, leftNode)
		if err != nil {
			return nil, err
		}
		if defined && left != nil {
			return left, nil
		}
		return r.eval(f, rightNode)
	}

	left, err := r.eval(f, leftNode)
	if err != nil {
		return nil, err
	}
	right, err := r.eval(f, rightNode)
	if err != nil {
		return nil, err
	}

	v, err := binaryOp(op, left, right)
	if err != nil {
		return nil, twigerrors.Runtime(f.tmpl.tree.Location(id), "%v", err)
	}
	return v, nil
}

func binaryOp(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return equals(left, right), nil
	case "!=":
		return !equals(left, right), nil
	case "<":
		return compare(left, right) < 0, nil
	case ">":
		return compare(left, right) > 0, nil
	case "<=":
		return compare(left, right) <= 0, nil
	case ">=":
		return compare(left, right) >= 0, nil
	case "<=>":
		return int64(compare(left, right)), nil
	case "in":
		return contains(right, left), nil
	case "not in":
		return !contains(right, left), nil
	case "starts with":
		return strings.HasPrefix(toString(left), toString(right)), nil
	case "ends with":
		return strings.HasSuffix(toString(left), toString(right)), nil
	case "matches":
		re, err := compilePattern(toString(right))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toString(left)), nil
	case "~":
		return toString(left) + toString(right), nil
	case "..":
		return rangeValues(left, right, int64(1))
	case "b-and":
		return toInt64(left) & toInt64(right), nil
	case "b-or":
		return toInt64(left) | toInt64(right), nil
	case "b-xor":
		return toInt64(left) ^ toInt64(right), nil
	}
	return arithmetic(op, left, right)
}

func arithmetic(op string, left, right any) (any, error) {
	ints := isIntegral(left) && isIntegral(right)
	li, lf := toInt64(left), toFloat(left)
	ri, rf := toInt64(right), toFloat(right)

	switch op {
	case "+":
		if ints {
			return li + ri, nil
		}
		return lf + rf, nil
	case "-":
		if ints {
			return li - ri, nil
		}
		return lf - rf, nil
	case "*":
		if ints {
			return li * ri, nil
		}
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errDivisionByZero
		}
		if ints && li%ri == 0 {
			return li / ri, nil
		}
		return lf / rf, nil
	case "//":
		if rf == 0 {
			return nil, errDivisionByZero
		}
		return int64(math.Floor(lf / rf)), nil
	case "%":
		if ri == 0 {
			return nil, errModuloByZero
		}
		return li % ri, nil
	case "**":
		if ints && ri >= 0 {
			return int64(math.Pow(lf, rf)), nil
		}
		return math.Pow(lf, rf), nil
	}
	return nil, errUnknownOperator(op)
}

// compilePattern converts a PCRE-style "/pattern/flags" literal.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) >= 2 {
		delim := pattern[0]
		if end := strings.LastIndexByte(pattern, delim); end > 0 {
			body, flags := pattern[1:end], pattern[end+1:]
			var prefix string
			for _, fl := range flags {
				switch fl {
				case 'i', 'm', 's', 'U':
					prefix += string(fl)
				}
			}
			if prefix != "" {
				body = "(?" + prefix + ")" + body
			}
			return regexp.Compile(body)
		}
	}
	return regexp.Compile(pattern)
}

func toInt64(v any) int64 {
	i, f, integral := toNumber(v)
	if !integral {
		return int64(f)
	}
	return i
}

func isPositionalKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}
