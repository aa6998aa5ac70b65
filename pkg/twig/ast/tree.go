package ast

import "strconv"

// NodeID addresses a node inside a Tree.
type NodeID int32

// NoNode is the zero NodeID. Slot zero of every arena is reserved for it.
const NoNode NodeID = 0

// IsValid returns true if the ID is valid (non-zero).
func (id NodeID) IsValid() bool { return id != NoNode }

// Tree is the arena holding every node of one parsed template.
type Tree struct {
	// Name is the template name the tree was parsed under.
	Name string `json:"name"`

	// Root is the top-level module node.
	Root NodeID `json:"root"`

	// Nodes is the arena. Nodes[0] is a placeholder for NoNode.
	Nodes []Node `json:"nodes"`
}

// NewTree creates an empty tree for the named template.
func NewTree(name string) *Tree {
	return &Tree{
		Name:  name,
		Nodes: make([]Node, 1, 64),
	}
}

// Add appends a node to the arena and returns its ID.
func (t *Tree) Add(typ NodeType, line int) NodeID {
	t.Nodes = append(t.Nodes, Node{Type: typ, Line: line})
	return NodeID(len(t.Nodes) - 1)
}

// Node returns the node for id. It panics on an out-of-range ID, like a
// slice index would.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	return len(t.Nodes) - 1
}

// Type returns the type of the node, or TypeNone for NoNode.
func (t *Tree) Type(id NodeID) NodeType {
	if !id.IsValid() {
		return TypeNone
	}
	return t.Nodes[id].Type
}

// AddChild attaches child to parent under key. Duplicate keys replace the
// existing edge in place so the enumeration order is stable.
func (t *Tree) AddChild(parent NodeID, key string, child NodeID) {
	n := &t.Nodes[parent]
	for i := range n.Children {
		if n.Children[i].Key == key {
			n.Children[i].ID = child
			return
		}
	}
	n.Children = append(n.Children, Child{Key: key, ID: child})
}

// Append attaches child under the next positional key.
func (t *Tree) Append(parent NodeID, child NodeID) {
	n := &t.Nodes[parent]
	n.Children = append(n.Children, Child{Key: strconv.Itoa(len(n.Children)), ID: child})
}

// Child returns the child of id stored under key.
func (t *Tree) Child(id NodeID, key string) (NodeID, bool) {
	return t.Nodes[id].Child(key)
}

// HasChild reports whether id has a child under key.
func (t *Tree) HasChild(id NodeID, key string) bool {
	return t.Nodes[id].HasChild(key)
}

// Children returns the ordered (key, child) pairs of id.
func (t *Tree) Children(id NodeID) []Child {
	return t.Nodes[id].Children
}

// Attr returns the attribute of id stored under key.
func (t *Tree) Attr(id NodeID, key string) (any, bool) {
	return t.Nodes[id].Attr(key)
}

// StringAttr returns the string attribute of id stored under key.
func (t *Tree) StringAttr(id NodeID, key string) string {
	return t.Nodes[id].StringAttr(key)
}

// SetAttr stores value under key on id.
func (t *Tree) SetAttr(id NodeID, key string, value any) {
	t.Nodes[id].SetAttr(key, value)
}

// EmbeddedTemplates returns the sub-module roots recorded on a module node.
func (t *Tree) EmbeddedTemplates(module NodeID) []NodeID {
	ids, _ := t.Nodes[module].Attrs[AttrEmbeddedTemplates].([]NodeID)
	return ids
}

// Location returns the location of id within the tree's template.
func (t *Tree) Location(id NodeID) Location {
	return Location{File: t.Name, Line: t.Nodes[id].Line}
}

// NewConstant adds an expression_constant node holding value.
func (t *Tree) NewConstant(value any, line int) NodeID {
	id := t.Add(TypeExprConstant, line)
	t.SetAttr(id, AttrValue, value)
	return id
}

// Clone deep-copies the subtree rooted at id and returns the new root.
func (t *Tree) Clone(id NodeID) NodeID {
	if !id.IsValid() {
		return NoNode
	}
	src := t.Nodes[id]
	dst := t.Add(src.Type, src.Line)
	for k, v := range src.Attrs {
		t.SetAttr(dst, k, v)
	}
	for _, c := range src.Children {
		t.AddChild(dst, c.Key, t.Clone(c.ID))
	}
	return dst
}
