package parser

import (
	"sort"

	"mercator-hq/twigpack/pkg/twig/ast"
)

// tagHandler parses a tag after its name was consumed. It returns the node
// to append to the current body, or ast.NoNode for tags that only affect the
// module.
type tagHandler func(st *state, tok Token) (ast.NodeID, error)

var tagHandlers map[string]tagHandler

func init() {
	tagHandlers = map[string]tagHandler{
		"if":         parseIf,
		"for":        parseFor,
		"set":        parseSet,
		"block":      parseBlock,
		"extends":    parseExtends,
		"include":    parseInclude,
		"embed":      parseEmbed,
		"import":     parseImport,
		"from":       parseFrom,
		"macro":      parseMacro,
		"with":       parseWith,
		"autoescape": parseAutoescape,
		"do":         parseDo,
	}
}

func tagNames() []string {
	names := make([]string, 0, len(tagHandlers))
	for name := range tagHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseIf(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeIf, tok.Line)
	tests := st.tree.Add(ast.TypeNone, tok.Line)

	cond, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	for {
		body, tag, err := st.subparseUntil("elseif", "else", "endif")
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.Append(tests, cond)
		st.tree.Append(tests, body)

		switch tag {
		case "elseif":
			if cond, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
			if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
				return ast.NoNode, err
			}
			continue

		case "else":
			if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
				return ast.NoNode, err
			}
			elseBody, _, err := st.subparseUntil("endif")
			if err != nil {
				return ast.NoNode, err
			}
			st.tree.AddChild(node, ast.ChildTests, tests)
			st.tree.AddChild(node, ast.ChildElse, elseBody)
		default:
			st.tree.AddChild(node, ast.ChildTests, tests)
		}
		break
	}

	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

func parseFor(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeFor, tok.Line)

	targets, err := st.parseTargets()
	if err != nil {
		return ast.NoNode, err
	}
	switch len(targets) {
	case 1:
		st.tree.SetAttr(node, ast.AttrValueTarget, targets[0])
	case 2:
		st.tree.SetAttr(node, ast.AttrKeyTarget, targets[0])
		st.tree.SetAttr(node, ast.AttrValueTarget, targets[1])
	default:
		return ast.NoNode, st.errorf(tok.Line, "A for loop accepts one or two targets")
	}

	if _, err := st.stream.Expect(TokenOperator, "in"); err != nil {
		return ast.NoNode, err
	}
	seq, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildSeq, seq)

	body, tag, err := st.subparseUntil("else", "endfor")
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildBody, body)

	if tag == "else" {
		if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
			return ast.NoNode, err
		}
		elseBody, _, err := st.subparseUntil("endfor")
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.AddChild(node, ast.ChildElse, elseBody)
	}

	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

func parseSet(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeSet, tok.Line)

	names, err := st.parseTargets()
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.SetAttr(node, ast.AttrNames, names)

	if _, ok := st.stream.NextIf(TokenOperator, "="); ok {
		values := st.tree.Add(ast.TypeNone, tok.Line)
		for i := 0; ; i++ {
			if i > 0 {
				if _, ok := st.stream.NextIf(TokenPunctuation, ","); !ok {
					break
				}
			}
			value, err := st.parseExpression(0)
			if err != nil {
				return ast.NoNode, err
			}
			st.tree.Append(values, value)
		}
		if len(st.tree.Children(values)) != len(names) {
			return ast.NoNode, st.errorf(tok.Line, "When using set, you must have the same number of variables and assignments")
		}
		if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
			return ast.NoNode, err
		}
		st.tree.AddChild(node, ast.ChildValues, values)
		return node, nil
	}

	if len(names) > 1 {
		return ast.NoNode, st.errorf(tok.Line, "When using set with a block, you cannot have a multi-target")
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	body, _, err := st.subparseUntil("endset")
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	st.tree.SetAttr(node, ast.AttrCapture, true)
	st.tree.AddChild(node, ast.ChildBody, body)
	return node, nil
}

func parseBlock(st *state, tok Token) (ast.NodeID, error) {
	nameTok, err := st.stream.Expect(TokenName)
	if err != nil {
		return ast.NoNode, err
	}
	name := nameTok.Value

	scope := st.scope()
	if line, ok := scope.blockNames[name]; ok {
		return ast.NoNode, st.errorf(tok.Line, "The block %q has already been defined line %d", name, line)
	}
	scope.blockNames[name] = tok.Line

	st.blockStack = append(st.blockStack, name)
	defer func() { st.blockStack = st.blockStack[:len(st.blockStack)-1] }()

	var body ast.NodeID
	if _, ok := st.stream.NextIf(TokenBlockEnd); ok {
		if body, _, err = st.subparseUntil("endblock"); err != nil {
			return ast.NoNode, err
		}
		if endName, ok := st.stream.NextIf(TokenName); ok && endName.Value != name {
			return ast.NoNode, st.errorf(endName.Line, "Expected endblock for block %q (but %q given)", name, endName.Value)
		}
	} else {
		expr, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		body = st.tree.Add(ast.TypeNone, tok.Line)
		printNode := st.tree.Add(ast.TypePrint, tok.Line)
		st.tree.AddChild(printNode, ast.ChildExpr, expr)
		st.tree.Append(body, printNode)
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	block := st.tree.Add(ast.TypeBlock, tok.Line)
	st.tree.SetAttr(block, ast.AttrName, name)
	st.tree.AddChild(block, ast.ChildBody, body)
	st.tree.AddChild(scope.blocks, name, block)

	ref := st.tree.Add(ast.TypeBlockReference, tok.Line)
	st.tree.SetAttr(ref, ast.AttrName, name)
	return ref, nil
}

func parseExtends(st *state, tok Token) (ast.NodeID, error) {
	if len(st.blockStack) > 0 || st.nesting > 0 {
		return ast.NoNode, st.errorf(tok.Line, "Cannot use \"extends\" in a block, macro or control structure")
	}
	scope := st.scope()
	if scope.parent.IsValid() {
		return ast.NoNode, st.errorf(tok.Line, "Multiple extends tags are forbidden")
	}

	parent, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	scope.parent = parent
	return ast.NoNode, nil
}

func parseInclude(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeInclude, tok.Line)

	expr, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildExpr, expr)

	if err := st.parseIncludeOptions(node); err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

// parseIncludeOptions parses [ignore missing] [with expr] [only].
func (st *state) parseIncludeOptions(node ast.NodeID) error {
	if _, ok := st.stream.NextIf(TokenName, "ignore"); ok {
		if _, err := st.stream.Expect(TokenName, "missing"); err != nil {
			return err
		}
		st.tree.SetAttr(node, ast.AttrIgnoreMissing, true)
	}
	if _, ok := st.stream.NextIf(TokenName, "with"); ok {
		vars, err := st.parseExpression(0)
		if err != nil {
			return err
		}
		st.tree.AddChild(node, ast.ChildVariables, vars)
	}
	if _, ok := st.stream.NextIf(TokenName, "only"); ok {
		st.tree.SetAttr(node, ast.AttrOnly, true)
	}
	return nil
}

func parseEmbed(st *state, tok Token) (ast.NodeID, error) {
	parent, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}

	node := st.tree.Add(ast.TypeEmbed, tok.Line)
	if err := st.parseIncludeOptions(node); err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	index := len(st.embedded)
	scope := st.newModule(tok.Line)
	scope.parent = parent
	st.tree.SetAttr(scope.id, ast.AttrIndex, index)
	st.embedded = append(st.embedded, scope.id)

	// Embedded bodies are parsed at module level: extends is not allowed
	// but blocks belong to the embedded template.
	st.scopes = append(st.scopes, scope)
	savedBlocks := st.blockStack
	st.blockStack = nil
	body, _, err := st.subparseUntil("endembed")
	st.blockStack = savedBlocks
	st.scopes = st.scopes[:len(st.scopes)-1]
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	if err := st.finishModule(scope, body); err != nil {
		return ast.NoNode, err
	}

	st.tree.SetAttr(node, ast.AttrName, st.tree.Name)
	st.tree.SetAttr(node, ast.AttrIndex, index)
	return node, nil
}

func parseImport(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeImport, tok.Line)

	expr, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildExpr, expr)

	if _, err := st.stream.Expect(TokenName, "as"); err != nil {
		return ast.NoNode, err
	}
	alias, err := st.stream.Expect(TokenName)
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.SetAttr(node, ast.AttrName, alias.Value)

	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

func parseFrom(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeImport, tok.Line)

	expr, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildExpr, expr)

	if _, err := st.stream.Expect(TokenName, "import"); err != nil {
		return ast.NoNode, err
	}

	var macros []ast.MacroAlias
	for {
		name, err := st.stream.Expect(TokenName)
		if err != nil {
			return ast.NoNode, err
		}
		alias := name.Value
		if _, ok := st.stream.NextIf(TokenName, "as"); ok {
			aliasTok, err := st.stream.Expect(TokenName)
			if err != nil {
				return ast.NoNode, err
			}
			alias = aliasTok.Value
		}
		macros = append(macros, ast.MacroAlias{Name: name.Value, Alias: alias})

		if _, ok := st.stream.NextIf(TokenPunctuation, ","); !ok {
			break
		}
	}
	st.tree.SetAttr(node, ast.AttrMacros, macros)

	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

func parseMacro(st *state, tok Token) (ast.NodeID, error) {
	nameTok, err := st.stream.Expect(TokenName)
	if err != nil {
		return ast.NoNode, err
	}
	name := nameTok.Value

	scope := st.scope()
	if scope.macroNames[name] {
		return ast.NoNode, st.errorf(tok.Line, "The macro %q has already been defined", name)
	}
	scope.macroNames[name] = true

	args := st.tree.Add(ast.TypeNone, tok.Line)
	if _, err := st.stream.Expect(TokenPunctuation, "("); err != nil {
		return ast.NoNode, err
	}
	for !st.stream.Test(TokenPunctuation, ")") {
		if len(st.tree.Children(args)) > 0 {
			if _, err := st.stream.Expect(TokenPunctuation, ","); err != nil {
				return ast.NoNode, err
			}
		}
		argTok, err := st.stream.Expect(TokenName)
		if err != nil {
			return ast.NoNode, err
		}
		if st.tree.HasChild(args, argTok.Value) {
			return ast.NoNode, st.errorf(argTok.Line, "The argument %q has already been defined for macro %q", argTok.Value, name)
		}
		def := st.tree.NewConstant(nil, argTok.Line)
		if _, ok := st.stream.NextIf(TokenOperator, "="); ok {
			if def, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
		}
		st.tree.AddChild(args, argTok.Value, def)
	}
	st.stream.Next()
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	body, _, err := st.subparseUntil("endmacro")
	if err != nil {
		return ast.NoNode, err
	}
	if endName, ok := st.stream.NextIf(TokenName); ok && endName.Value != name {
		return ast.NoNode, st.errorf(endName.Line, "Expected endmacro for macro %q (but %q given)", name, endName.Value)
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	macro := st.tree.Add(ast.TypeMacro, tok.Line)
	st.tree.SetAttr(macro, ast.AttrName, name)
	st.tree.AddChild(macro, ast.ChildBody, body)
	st.tree.AddChild(macro, ast.ChildArguments, args)
	st.tree.AddChild(scope.macros, name, macro)
	return ast.NoNode, nil
}

func parseWith(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeWith, tok.Line)

	if !st.stream.Test(TokenBlockEnd) && !st.stream.Test(TokenName, "only") {
		vars, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.AddChild(node, ast.ChildVariables, vars)
	}
	if _, ok := st.stream.NextIf(TokenName, "only"); ok {
		st.tree.SetAttr(node, ast.AttrOnly, true)
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}

	body, _, err := st.subparseUntil("endwith")
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildBody, body)
	return node, nil
}

func parseAutoescape(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeAutoescape, tok.Line)

	strategy := "html"
	if !st.stream.Test(TokenBlockEnd) {
		expr, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		n := st.tree.Node(expr)
		if n.Type != ast.TypeExprConstant {
			return ast.NoNode, st.errorf(tok.Line, "An escaping strategy must be a string or false")
		}
		switch v := n.Attrs[ast.AttrValue].(type) {
		case string:
			strategy = v
		case bool:
			if v {
				return ast.NoNode, st.errorf(tok.Line, "An escaping strategy must be a string or false")
			}
			strategy = ""
		default:
			return ast.NoNode, st.errorf(tok.Line, "An escaping strategy must be a string or false")
		}
	}
	st.tree.SetAttr(node, ast.AttrStrategy, strategy)

	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	body, _, err := st.subparseUntil("endautoescape")
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildBody, body)
	return node, nil
}

func parseDo(st *state, tok Token) (ast.NodeID, error) {
	node := st.tree.Add(ast.TypeDo, tok.Line)
	expr, err := st.parseExpression(0)
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := st.stream.Expect(TokenBlockEnd); err != nil {
		return ast.NoNode, err
	}
	st.tree.AddChild(node, ast.ChildExpr, expr)
	return node, nil
}

// parseTargets parses a comma separated list of assignment names.
func (st *state) parseTargets() ([]string, error) {
	var names []string
	for {
		tok, err := st.stream.Expect(TokenName)
		if err != nil {
			return nil, err
		}
		switch tok.Value {
		case "true", "false", "none", "null", "TRUE", "FALSE", "NONE", "NULL":
			return nil, st.errorf(tok.Line, "You cannot assign a value to %q", tok.Value)
		}
		names = append(names, tok.Value)
		if _, ok := st.stream.NextIf(TokenPunctuation, ","); !ok {
			return names, nil
		}
	}
}
