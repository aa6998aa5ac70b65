// Package codegen turns a template tree into the body of a CommonJS module.
//
// The generated module exports a plain object describing the tree:
//
//	module.exports = {"name":"index.twig","module":{"type":"module",...}};
//
// Each node is encoded with its type name, source line, attributes and an
// ordered list of [key, node] child pairs. Child lists are arrays because
// JavaScript objects reorder integer-like keys, which would break positional
// children mixed with named ones. Embedded templates are inlined under the
// embedded_templates attribute of their module.
package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"mercator-hq/twigpack/pkg/twig/ast"
)

// Prefix starts every generated module.
const Prefix = "module.exports = "

// Module is the serialized form of a tree.
type Module struct {
	Name   string `json:"name"`
	Module *Node  `json:"module"`
}

// Node is the serialized form of one tree node.
type Node struct {
	Type       string         `json:"type"`
	Line       int            `json:"line,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Nodes      []ChildNode    `json:"nodes,omitempty"`
}

// ChildNode is a keyed child, encoded as a two element array.
type ChildNode struct {
	Key  string
	Node *Node
}

// MarshalJSON encodes the child as [key, node]. json.Marshal would escape
// HTML in nested template text, so the pair goes through its own encoder.
func (c ChildNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{c.Key, c.Node}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Compile generates the module code for tree.
func Compile(tree *ast.Tree) (string, error) {
	if tree == nil || !tree.Root.IsValid() {
		return "", fmt.Errorf("cannot compile an empty tree")
	}

	m := &Module{Name: tree.Name, Module: Convert(tree, tree.Root)}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("failed to encode template %q: %w", tree.Name, err)
	}
	return Prefix + string(bytes.TrimRight(buf.Bytes(), "\n")) + ";", nil
}

// Convert builds the serialized form of the subtree rooted at id.
func Convert(tree *ast.Tree, id ast.NodeID) *Node {
	if !id.IsValid() {
		return nil
	}
	n := tree.Node(id)
	out := &Node{Type: typeName(n.Type), Line: n.Line}

	if len(n.Attrs) > 0 {
		out.Attributes = make(map[string]any, len(n.Attrs))
		for _, key := range sortedAttrKeys(n.Attrs) {
			if key == ast.AttrEmbeddedTemplates {
				embedded := tree.EmbeddedTemplates(id)
				nodes := make([]*Node, len(embedded))
				for i, e := range embedded {
					nodes[i] = Convert(tree, e)
				}
				out.Attributes[key] = nodes
				continue
			}
			out.Attributes[key] = n.Attrs[key]
		}
	}

	for _, c := range n.Children {
		out.Nodes = append(out.Nodes, ChildNode{Key: c.Key, Node: Convert(tree, c.ID)})
	}
	return out
}

func typeName(t ast.NodeType) string {
	if t == ast.TypeNone {
		return "null"
	}
	return t.String()
}

func sortedAttrKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
