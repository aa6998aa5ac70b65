package ast

// NodeType is the closed set of node kinds the parser produces.
type NodeType uint8

const (
	// TypeNone is the null type used by structural list nodes.
	TypeNone NodeType = iota
	TypeModule
	TypeText
	TypePrint
	TypeIf
	TypeFor
	TypeSet
	TypeBlock
	TypeBlockReference
	TypeImport
	TypeInclude
	TypeEmbed
	TypeMacro
	TypeWith
	TypeAutoescape
	TypeDo
	TypeExprConstant
	TypeExprName
	TypeExprArray
	TypeExprHash
	TypeExprConditional
	TypeExprFunction
	TypeExprFilter
	TypeExprTest
	TypeExprGetAttr
	TypeExprBinary
	TypeExprUnary
	TypeExprParent

	numNodeTypes
)

var nodeTypeNames = [numNodeTypes]string{
	TypeNone:            "",
	TypeModule:          "module",
	TypeText:            "text",
	TypePrint:           "print",
	TypeIf:              "if",
	TypeFor:             "for",
	TypeSet:             "set",
	TypeBlock:           "block",
	TypeBlockReference:  "block_reference",
	TypeImport:          "import",
	TypeInclude:         "include",
	TypeEmbed:           "embed",
	TypeMacro:           "macro",
	TypeWith:            "with",
	TypeAutoescape:      "autoescape",
	TypeDo:              "do",
	TypeExprConstant:    "expression_constant",
	TypeExprName:        "expression_name",
	TypeExprArray:       "expression_array",
	TypeExprHash:        "expression_hash",
	TypeExprConditional: "expression_conditional",
	TypeExprFunction:    "expression_function",
	TypeExprFilter:      "expression_filter",
	TypeExprTest:        "expression_test",
	TypeExprGetAttr:     "expression_get_attr",
	TypeExprBinary:      "expression_binary",
	TypeExprUnary:       "expression_unary",
	TypeExprParent:      "expression_parent",
}

// String returns the Twig name of the node type. TypeNone has no name.
func (t NodeType) String() string {
	if t < numNodeTypes {
		return nodeTypeNames[t]
	}
	return "unknown"
}

// IsNull reports whether t is the null type of structural nodes.
func (t NodeType) IsNull() bool {
	return t == TypeNone
}

// IsExpression reports whether t is one of the expression types.
func (t NodeType) IsExpression() bool {
	return t >= TypeExprConstant && t < numNodeTypes
}

// MarshalText implements encoding.TextMarshaler so serialized trees carry the
// Twig names rather than enumeration ordinals.
func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Well-known attribute keys.
const (
	AttrValue             = "value"
	AttrName              = "name"
	AttrOperator          = "operator"
	AttrEmbeddedTemplates = "embedded_templates"
	AttrIgnoreMissing     = "ignore_missing"
	AttrOnly              = "only"
	AttrIndex             = "index"
	AttrCapture           = "capture"
	AttrKeyTarget         = "key_target"
	AttrValueTarget       = "value_target"
	AttrArguments         = "arguments"
	AttrMacros            = "macros"
	AttrNegated           = "negated"
	AttrSafe              = "safe"
	AttrData              = "data"
	AttrNames             = "names"
	AttrStrategy          = "strategy"
	AttrParentBlock       = "block"
	AttrCallType          = "call_type"
)

// Attribute access kinds stored under AttrCallType.
const (
	CallAny    = "any"
	CallArray  = "array"
	CallMethod = "method"
)

// MacroAlias binds an imported macro to a local name.
type MacroAlias struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// Well-known child keys.
const (
	ChildExpr      = "expr"
	ChildExpr1     = "expr1"
	ChildExpr2     = "expr2"
	ChildExpr3     = "expr3"
	ChildParent    = "parent"
	ChildBody      = "body"
	ChildBlocks    = "blocks"
	ChildMacros    = "macros"
	ChildArguments = "arguments"
	ChildVariables = "variables"
	ChildNode      = "node"
	ChildAttribute = "attribute"
	ChildLeft      = "left"
	ChildRight     = "right"
	ChildTests     = "tests"
	ChildElse      = "else"
	ChildSeq       = "seq"
	ChildDefaults  = "defaults"
	ChildValues    = "values"
)

// Child is a keyed edge from a node to one of its children.
type Child struct {
	Key string `json:"key"`
	ID  NodeID `json:"id"`
}

// Node is a single entry of the arena.
type Node struct {
	Type     NodeType       `json:"type"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Children []Child        `json:"children,omitempty"`
	Line     int            `json:"line,omitempty"`
}

// Child returns the child stored under key.
func (n *Node) Child(key string) (NodeID, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c.ID, true
		}
	}
	return NoNode, false
}

// HasChild reports whether the node has a child under key.
func (n *Node) HasChild(key string) bool {
	_, ok := n.Child(key)
	return ok
}

// Attr returns the attribute stored under key.
func (n *Node) Attr(key string) (any, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// StringAttr returns the attribute under key if it is a string.
func (n *Node) StringAttr(key string) string {
	s, _ := n.Attrs[key].(string)
	return s
}

// BoolAttr returns the attribute under key if it is a bool.
func (n *Node) BoolAttr(key string) bool {
	b, _ := n.Attrs[key].(bool)
	return b
}

// SetAttr stores value under key.
func (n *Node) SetAttr(key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}
