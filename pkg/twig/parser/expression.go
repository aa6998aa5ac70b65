package parser

import (
	"strconv"

	"mercator-hq/twigpack/pkg/twig/ast"
)

type operator struct {
	precedence int
	rightAssoc bool
}

var unaryOperators = map[string]int{
	"not": 50,
	"-":   500,
	"+":   500,
}

var binaryOperators = map[string]operator{
	"or":          {precedence: 10},
	"and":         {precedence: 15},
	"b-or":        {precedence: 16},
	"b-xor":       {precedence: 17},
	"b-and":       {precedence: 18},
	"==":          {precedence: 20},
	"!=":          {precedence: 20},
	"<=>":         {precedence: 20},
	"<":           {precedence: 20},
	">":           {precedence: 20},
	">=":          {precedence: 20},
	"<=":          {precedence: 20},
	"not in":      {precedence: 20},
	"in":          {precedence: 20},
	"matches":     {precedence: 20},
	"starts with": {precedence: 20},
	"ends with":   {precedence: 20},
	"..":          {precedence: 25},
	"+":           {precedence: 30},
	"-":           {precedence: 30},
	"~":           {precedence: 40},
	"*":           {precedence: 60},
	"/":           {precedence: 60},
	"//":          {precedence: 60},
	"%":           {precedence: 60},
	"is":          {precedence: 100},
	"is not":      {precedence: 100},
	"**":          {precedence: 200, rightAssoc: true},
	"??":          {precedence: 300, rightAssoc: true},
}

// twoWordTests maps the first word of a two-word test to its second word.
var twoWordTests = map[string]string{
	"divisible": "by",
	"same":      "as",
}

func (st *state) parseExpression(precedence int) (ast.NodeID, error) {
	line := st.stream.Current().Line
	if err := st.enter(line); err != nil {
		return ast.NoNode, err
	}
	defer st.leave()

	expr, err := st.parsePrimary()
	if err != nil {
		return ast.NoNode, err
	}

	for {
		tok := st.stream.Current()
		if tok.Type != TokenOperator {
			break
		}
		op, ok := binaryOperators[tok.Value]
		if !ok || op.precedence < precedence {
			break
		}
		st.stream.Next()

		switch tok.Value {
		case "is":
			if expr, err = st.parseTest(expr, tok.Line); err != nil {
				return ast.NoNode, err
			}
		case "is not":
			test, err := st.parseTest(expr, tok.Line)
			if err != nil {
				return ast.NoNode, err
			}
			expr = st.unary("not", test, tok.Line)
		default:
			next := op.precedence + 1
			if op.rightAssoc {
				next = op.precedence
			}
			right, err := st.parseExpression(next)
			if err != nil {
				return ast.NoNode, err
			}
			bin := st.tree.Add(ast.TypeExprBinary, tok.Line)
			st.tree.SetAttr(bin, ast.AttrOperator, tok.Value)
			st.tree.AddChild(bin, ast.ChildLeft, expr)
			st.tree.AddChild(bin, ast.ChildRight, right)
			expr = bin
		}
	}

	if precedence == 0 {
		return st.parseConditional(expr)
	}
	return expr, nil
}

func (st *state) parseConditional(expr ast.NodeID) (ast.NodeID, error) {
	for {
		tok, ok := st.stream.NextIf(TokenPunctuation, "?")
		if !ok {
			return expr, nil
		}

		var expr2, expr3 ast.NodeID
		var err error
		if _, ok := st.stream.NextIf(TokenPunctuation, ":"); ok {
			// a ?: b
			expr2 = st.tree.Clone(expr)
			if expr3, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
		} else {
			if expr2, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
			if _, ok := st.stream.NextIf(TokenPunctuation, ":"); ok {
				if expr3, err = st.parseExpression(0); err != nil {
					return ast.NoNode, err
				}
			} else {
				expr3 = st.tree.NewConstant("", tok.Line)
			}
		}

		cond := st.tree.Add(ast.TypeExprConditional, tok.Line)
		st.tree.AddChild(cond, ast.ChildExpr1, expr)
		st.tree.AddChild(cond, ast.ChildExpr2, expr2)
		st.tree.AddChild(cond, ast.ChildExpr3, expr3)
		expr = cond
	}
}

func (st *state) parsePrimary() (ast.NodeID, error) {
	tok := st.stream.Current()

	if tok.Type == TokenOperator {
		if precedence, ok := unaryOperators[tok.Value]; ok {
			st.stream.Next()
			operand, err := st.parseExpression(precedence)
			if err != nil {
				return ast.NoNode, err
			}
			return st.parsePostfix(st.unary(tok.Value, operand, tok.Line))
		}
	}

	if tok.Test(TokenPunctuation, "(") {
		st.stream.Next()
		expr, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		if _, err := st.stream.Expect(TokenPunctuation, ")"); err != nil {
			return ast.NoNode, err
		}
		return st.parsePostfix(expr)
	}

	return st.parsePrimaryExpression()
}

func (st *state) parsePrimaryExpression() (ast.NodeID, error) {
	tok := st.stream.Current()
	var node ast.NodeID

	switch tok.Type {
	case TokenName:
		st.stream.Next()
		switch tok.Value {
		case "true", "TRUE":
			node = st.tree.NewConstant(true, tok.Line)
		case "false", "FALSE":
			node = st.tree.NewConstant(false, tok.Line)
		case "none", "NONE", "null", "NULL":
			node = st.tree.NewConstant(nil, tok.Line)
		default:
			if st.stream.Test(TokenPunctuation, "(") {
				var err error
				if node, err = st.parseFunction(tok); err != nil {
					return ast.NoNode, err
				}
				break
			}
			node = st.tree.Add(ast.TypeExprName, tok.Line)
			st.tree.SetAttr(node, ast.AttrName, tok.Value)
		}

	case TokenNumber:
		st.stream.Next()
		node = st.tree.NewConstant(parseNumber(tok.Value), tok.Line)

	case TokenString:
		st.stream.Next()
		node = st.tree.NewConstant(tok.Value, tok.Line)

	case TokenPunctuation:
		var err error
		switch tok.Value {
		case "[":
			node, err = st.parseArray()
		case "{":
			node, err = st.parseHash()
		default:
			return ast.NoNode, st.errorf(tok.Line, "Unexpected token %s", tok)
		}
		if err != nil {
			return ast.NoNode, err
		}

	default:
		return ast.NoNode, st.errorf(tok.Line, "Unexpected token %s", tok)
	}

	return st.parsePostfix(node)
}

func (st *state) parseFunction(name Token) (ast.NodeID, error) {
	if name.Value == "parent" {
		return st.parseParent(name)
	}

	args, err := st.parseArguments()
	if err != nil {
		return ast.NoNode, err
	}
	node := st.tree.Add(ast.TypeExprFunction, name.Line)
	st.tree.SetAttr(node, ast.AttrName, name.Value)
	st.tree.AddChild(node, ast.ChildArguments, args)
	return node, nil
}

func (st *state) parseParent(name Token) (ast.NodeID, error) {
	if _, err := st.parseArguments(); err != nil {
		return ast.NoNode, err
	}
	if len(st.blockStack) == 0 {
		return ast.NoNode, st.errorf(name.Line, "Calling \"parent\" outside a block is forbidden")
	}
	if !st.scope().parent.IsValid() {
		return ast.NoNode, st.errorf(name.Line, "Calling \"parent\" on a template that does not extend another template is forbidden")
	}
	node := st.tree.Add(ast.TypeExprParent, name.Line)
	st.tree.SetAttr(node, ast.AttrName, st.blockStack[len(st.blockStack)-1])
	return node, nil
}

// parseArguments parses a parenthesized argument list. Positional arguments
// are keyed by position, named arguments by name.
func (st *state) parseArguments() (ast.NodeID, error) {
	open, err := st.stream.Expect(TokenPunctuation, "(")
	if err != nil {
		return ast.NoNode, err
	}
	args := st.tree.Add(ast.TypeNone, open.Line)

	named := false
	for !st.stream.Test(TokenPunctuation, ")") {
		if len(st.tree.Children(args)) > 0 {
			if _, err := st.stream.Expect(TokenPunctuation, ","); err != nil {
				return ast.NoNode, err
			}
		}

		if st.stream.Test(TokenName) && st.stream.Look(1).Test(TokenOperator, "=") {
			name := st.stream.Next()
			st.stream.Next()
			value, err := st.parseExpression(0)
			if err != nil {
				return ast.NoNode, err
			}
			if st.tree.HasChild(args, name.Value) {
				return ast.NoNode, st.errorf(name.Line, "Argument %q is defined twice", name.Value)
			}
			st.tree.AddChild(args, name.Value, value)
			named = true
			continue
		}

		if named {
			return ast.NoNode, st.errorf(st.stream.Current().Line, "Positional arguments cannot be used after named arguments")
		}
		value, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.Append(args, value)
	}
	st.stream.Next()
	return args, nil
}

// parseArray parses [a, b, c] into alternating key and value children.
func (st *state) parseArray() (ast.NodeID, error) {
	open := st.stream.Next()
	arr := st.tree.Add(ast.TypeExprArray, open.Line)

	for i := 0; !st.stream.Test(TokenPunctuation, "]"); i++ {
		if i > 0 {
			if _, err := st.stream.Expect(TokenPunctuation, ","); err != nil {
				return ast.NoNode, err
			}
			if st.stream.Test(TokenPunctuation, "]") {
				break
			}
		}
		value, err := st.parseExpression(0)
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.Append(arr, st.tree.NewConstant(int64(i), open.Line))
		st.tree.Append(arr, value)
	}
	st.stream.Next()
	return arr, nil
}

// parseHash parses {k: v, ...} into alternating key and value children.
func (st *state) parseHash() (ast.NodeID, error) {
	open := st.stream.Next()
	hash := st.tree.Add(ast.TypeExprHash, open.Line)

	for first := true; !st.stream.Test(TokenPunctuation, "}"); first = false {
		if !first {
			if _, err := st.stream.Expect(TokenPunctuation, ","); err != nil {
				return ast.NoNode, err
			}
			if st.stream.Test(TokenPunctuation, "}") {
				break
			}
		}

		tok := st.stream.Current()
		var key, value ast.NodeID
		switch {
		case tok.Type == TokenString || tok.Type == TokenName:
			st.stream.Next()
			key = st.tree.NewConstant(tok.Value, tok.Line)
			if tok.Type == TokenName && (st.stream.Test(TokenPunctuation, ",") || st.stream.Test(TokenPunctuation, "}")) {
				value = st.tree.Add(ast.TypeExprName, tok.Line)
				st.tree.SetAttr(value, ast.AttrName, tok.Value)
			}
		case tok.Type == TokenNumber:
			st.stream.Next()
			key = st.tree.NewConstant(parseNumber(tok.Value), tok.Line)
		case tok.Test(TokenPunctuation, "("):
			var err error
			if key, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
		default:
			return ast.NoNode, st.errorf(tok.Line, "A hash key must be a quoted string, a number, a name, or an expression enclosed in parentheses (unexpected token %s)", tok)
		}

		if !value.IsValid() {
			if _, err := st.stream.Expect(TokenPunctuation, ":"); err != nil {
				return ast.NoNode, err
			}
			var err error
			if value, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
		}
		st.tree.Append(hash, key)
		st.tree.Append(hash, value)
	}
	st.stream.Next()
	return hash, nil
}

func (st *state) parsePostfix(node ast.NodeID) (ast.NodeID, error) {
	for {
		tok := st.stream.Current()
		if tok.Type != TokenPunctuation {
			return node, nil
		}

		var err error
		switch tok.Value {
		case ".":
			node, err = st.parseDotAccess(node)
		case "[":
			node, err = st.parseSubscript(node)
		case "|":
			node, err = st.parseFilter(node)
		default:
			return node, nil
		}
		if err != nil {
			return ast.NoNode, err
		}
	}
}

func (st *state) parseDotAccess(node ast.NodeID) (ast.NodeID, error) {
	st.stream.Next()
	tok := st.stream.Next()

	var attr ast.NodeID
	switch {
	case tok.Type == TokenName:
		attr = st.tree.NewConstant(tok.Value, tok.Line)
	case tok.Type == TokenNumber:
		attr = st.tree.NewConstant(parseNumber(tok.Value), tok.Line)
	case tok.Type == TokenOperator && isWord(tok.Value):
		attr = st.tree.NewConstant(tok.Value, tok.Line)
	default:
		return ast.NoNode, st.errorf(tok.Line, "Expected name or number, got %s", tok)
	}

	get := st.tree.Add(ast.TypeExprGetAttr, tok.Line)
	st.tree.AddChild(get, ast.ChildNode, node)
	st.tree.AddChild(get, ast.ChildAttribute, attr)
	st.tree.SetAttr(get, ast.AttrCallType, ast.CallAny)

	if st.stream.Test(TokenPunctuation, "(") {
		args, err := st.parseArguments()
		if err != nil {
			return ast.NoNode, err
		}
		st.tree.AddChild(get, ast.ChildArguments, args)
		st.tree.SetAttr(get, ast.AttrCallType, ast.CallMethod)
	}
	return get, nil
}

func (st *state) parseSubscript(node ast.NodeID) (ast.NodeID, error) {
	open := st.stream.Next()

	var start ast.NodeID
	if !st.stream.Test(TokenPunctuation, ":") {
		var err error
		if start, err = st.parseExpression(0); err != nil {
			return ast.NoNode, err
		}
	}

	if _, ok := st.stream.NextIf(TokenPunctuation, ":"); ok {
		// a[start:length] is sugar for a|slice(start, length)
		if !start.IsValid() {
			start = st.tree.NewConstant(int64(0), open.Line)
		}
		length := st.tree.NewConstant(nil, open.Line)
		if !st.stream.Test(TokenPunctuation, "]") {
			var err error
			if length, err = st.parseExpression(0); err != nil {
				return ast.NoNode, err
			}
		}
		if _, err := st.stream.Expect(TokenPunctuation, "]"); err != nil {
			return ast.NoNode, err
		}

		args := st.tree.Add(ast.TypeNone, open.Line)
		st.tree.Append(args, start)
		st.tree.Append(args, length)
		filter := st.tree.Add(ast.TypeExprFilter, open.Line)
		st.tree.SetAttr(filter, ast.AttrName, "slice")
		st.tree.AddChild(filter, ast.ChildNode, node)
		st.tree.AddChild(filter, ast.ChildArguments, args)
		return filter, nil
	}

	if _, err := st.stream.Expect(TokenPunctuation, "]"); err != nil {
		return ast.NoNode, err
	}
	get := st.tree.Add(ast.TypeExprGetAttr, open.Line)
	st.tree.AddChild(get, ast.ChildNode, node)
	st.tree.AddChild(get, ast.ChildAttribute, start)
	st.tree.SetAttr(get, ast.AttrCallType, ast.CallArray)
	return get, nil
}

func (st *state) parseFilter(node ast.NodeID) (ast.NodeID, error) {
	for {
		if _, ok := st.stream.NextIf(TokenPunctuation, "|"); !ok {
			return node, nil
		}
		name, err := st.stream.Expect(TokenName)
		if err != nil {
			return ast.NoNode, err
		}

		var args ast.NodeID
		if st.stream.Test(TokenPunctuation, "(") {
			if args, err = st.parseArguments(); err != nil {
				return ast.NoNode, err
			}
		} else {
			args = st.tree.Add(ast.TypeNone, name.Line)
		}

		filter := st.tree.Add(ast.TypeExprFilter, name.Line)
		st.tree.SetAttr(filter, ast.AttrName, name.Value)
		st.tree.AddChild(filter, ast.ChildNode, node)
		st.tree.AddChild(filter, ast.ChildArguments, args)
		node = filter
	}
}

func (st *state) parseTest(node ast.NodeID, line int) (ast.NodeID, error) {
	name, err := st.stream.Expect(TokenName)
	if err != nil {
		return ast.NoNode, err
	}
	testName := name.Value
	if second, ok := twoWordTests[testName]; ok {
		if _, ok := st.stream.NextIf(TokenName, second); ok {
			testName += " " + second
		}
	}
	// "is none" and "is null" share the null constant keyword.
	switch testName {
	case "none", "null", "NONE", "NULL":
		testName = "null"
	}

	var args ast.NodeID
	if st.stream.Test(TokenPunctuation, "(") {
		if args, err = st.parseArguments(); err != nil {
			return ast.NoNode, err
		}
	} else {
		args = st.tree.Add(ast.TypeNone, line)
	}

	test := st.tree.Add(ast.TypeExprTest, line)
	st.tree.SetAttr(test, ast.AttrName, testName)
	st.tree.AddChild(test, ast.ChildNode, node)
	st.tree.AddChild(test, ast.ChildArguments, args)
	return test, nil
}

func (st *state) unary(op string, operand ast.NodeID, line int) ast.NodeID {
	node := st.tree.Add(ast.TypeExprUnary, line)
	st.tree.SetAttr(node, ast.AttrOperator, op)
	st.tree.AddChild(node, ast.ChildNode, operand)
	return node
}

func parseNumber(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func isWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}
	return s != ""
}
