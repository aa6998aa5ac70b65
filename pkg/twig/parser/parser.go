package parser

import (
	"strings"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// Parser builds ast.Trees from token streams. A Parser is stateless between
// calls and safe for concurrent use.
type Parser struct {
	maxDepth int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth limits the nesting depth of expressions and tags.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// DefaultMaxDepth is the nesting limit used when none is configured.
const DefaultMaxDepth = 256

// NewParser creates a new parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseSource tokenizes and parses source in one step.
func ParseSource(source *loader.Source) (*ast.Tree, error) {
	stream, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return NewParser().Parse(stream)
}

// Parse builds the tree for a token stream.
func (p *Parser) Parse(stream *TokenStream) (*ast.Tree, error) {
	st := &state{
		parser: p,
		stream: stream,
		tree:   ast.NewTree(stream.Source().Name),
	}

	scope := st.newModule(1)
	st.scopes = append(st.scopes, scope)

	body, _, err := st.subparse(nil)
	if err != nil {
		return nil, err
	}
	if err := st.finishModule(scope, body); err != nil {
		return nil, err
	}

	if len(st.embedded) > 0 {
		st.tree.SetAttr(scope.id, ast.AttrEmbeddedTemplates, st.embedded)
	}
	st.tree.Root = scope.id
	return st.tree, nil
}

// moduleScope collects the module-level parts of a template or of an
// embedded template while its body is parsed.
type moduleScope struct {
	id         ast.NodeID
	parent     ast.NodeID
	blocks     ast.NodeID
	macros     ast.NodeID
	blockNames map[string]int
	macroNames map[string]bool
}

// state is the per-call parsing state.
type state struct {
	parser *Parser
	stream *TokenStream
	tree   *ast.Tree

	scopes   []*moduleScope
	embedded []ast.NodeID

	blockStack []string
	nesting    int
	depth      int
}

func (st *state) scope() *moduleScope {
	return st.scopes[len(st.scopes)-1]
}

func (st *state) newModule(line int) *moduleScope {
	id := st.tree.Add(ast.TypeModule, line)
	return &moduleScope{
		id:         id,
		blocks:     st.tree.Add(ast.TypeNone, line),
		macros:     st.tree.Add(ast.TypeNone, line),
		blockNames: make(map[string]int),
		macroNames: make(map[string]bool),
	}
}

// finishModule attaches the collected parts to the module node in their
// enumeration order: parent, body, blocks, macros.
func (st *state) finishModule(scope *moduleScope, body ast.NodeID) error {
	if scope.parent.IsValid() {
		if err := st.checkChildBody(body); err != nil {
			return err
		}
		st.tree.AddChild(scope.id, ast.ChildParent, scope.parent)
	}
	st.tree.AddChild(scope.id, ast.ChildBody, body)
	st.tree.AddChild(scope.id, ast.ChildBlocks, scope.blocks)
	st.tree.AddChild(scope.id, ast.ChildMacros, scope.macros)
	return nil
}

// checkChildBody rejects output outside blocks in a template that extends
// another one.
func (st *state) checkChildBody(body ast.NodeID) error {
	for _, c := range st.tree.Children(body) {
		n := st.tree.Node(c.ID)
		switch n.Type {
		case ast.TypeText:
			if strings.TrimSpace(n.StringAttr(ast.AttrData)) == "" {
				continue
			}
		case ast.TypePrint:
		default:
			continue
		}
		return st.errorf(n.Line, "A template that extends another one cannot include content outside Twig blocks. Did you forget to put the content inside a {%% block %%} tag?")
	}
	return nil
}

// subparse parses nodes until EOF or until a tag accepted by end. When end
// matches, the stream is left on the tag name and the name is returned.
func (st *state) subparse(end func(name string) bool) (ast.NodeID, string, error) {
	body := st.tree.Add(ast.TypeNone, st.stream.Current().Line)

	for !st.stream.IsEOF() {
		tok := st.stream.Current()
		switch tok.Type {
		case TokenText:
			st.stream.Next()
			text := st.tree.Add(ast.TypeText, tok.Line)
			st.tree.SetAttr(text, ast.AttrData, tok.Value)
			st.tree.Append(body, text)

		case TokenVarStart:
			st.stream.Next()
			expr, err := st.parseExpression(0)
			if err != nil {
				return ast.NoNode, "", err
			}
			if _, err := st.stream.Expect(TokenVarEnd); err != nil {
				return ast.NoNode, "", err
			}
			printNode := st.tree.Add(ast.TypePrint, tok.Line)
			st.tree.AddChild(printNode, ast.ChildExpr, expr)
			st.tree.Append(body, printNode)

		case TokenBlockStart:
			st.stream.Next()
			nameTok := st.stream.Current()
			if nameTok.Type != TokenName {
				return ast.NoNode, "", st.errorf(nameTok.Line, "A block must start with a tag name")
			}
			if end != nil && end(nameTok.Value) {
				return body, nameTok.Value, nil
			}

			handler, ok := tagHandlers[nameTok.Value]
			if !ok {
				return ast.NoNode, "", st.unknownTag(nameTok, end != nil)
			}
			st.stream.Next()

			node, err := handler(st, nameTok)
			if err != nil {
				return ast.NoNode, "", err
			}
			if node.IsValid() {
				st.tree.Append(body, node)
			}

		default:
			return ast.NoNode, "", st.errorf(tok.Line, "Unexpected token %s", tok)
		}
	}

	if end != nil {
		return ast.NoNode, "", st.errorf(st.stream.Current().Line, "Unexpected end of template")
	}
	return body, "", nil
}

// subparseUntil parses a body that ends with one of the given tags, consumes
// the tag name and returns it.
func (st *state) subparseUntil(tags ...string) (ast.NodeID, string, error) {
	st.nesting++
	defer func() { st.nesting-- }()

	body, tag, err := st.subparse(func(name string) bool {
		for _, t := range tags {
			if name == t {
				return true
			}
		}
		return false
	})
	if err != nil {
		return ast.NoNode, "", err
	}
	st.stream.Next()
	return body, tag, nil
}

func (st *state) unknownTag(tok Token, nested bool) error {
	err := st.errorf(tok.Line, "Unknown %q tag", tok.Value)
	if nested && strings.HasPrefix(tok.Value, "end") {
		err = st.errorf(tok.Line, "Unexpected %q tag", tok.Value)
	}
	if suggestion := twigerrors.SuggestName("tag", tok.Value, tagNames()); suggestion != "" {
		err = err.WithSuggestion(suggestion)
	}
	return err
}

func (st *state) enter(line int) error {
	st.depth++
	if st.depth > st.parser.maxDepth {
		return st.errorf(line, "Maximum nesting depth of %d exceeded", st.parser.maxDepth)
	}
	return nil
}

func (st *state) leave() {
	st.depth--
}

func (st *state) errorf(line int, format string, args ...any) *twigerrors.Error {
	return st.stream.errorf(line, format, args...)
}
