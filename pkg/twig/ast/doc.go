// Package ast provides the syntax tree produced by the Twig parser.
//
// The tree is an arena: every node lives in Tree.Nodes and is addressed by a
// NodeID. A compilation owns its tree exclusively, so passes such as the
// reference visitor can rewrite attributes in place without any locking.
//
// # Node shapes
//
// Every node carries a closed NodeType, a set of attributes and an ordered
// list of children. Children are keyed: named slots ("expr", "parent",
// "arguments", "body") and positional slots ("0", "1", ...). The enumeration
// order of Children is the order used by every traversal.
//
//	module
//	├── parent   (optional, the extends target)
//	├── body     (TypeNone list of statements)
//	├── blocks   (TypeNone list of TypeBlock)
//	└── macros   (TypeNone list of TypeMacro)
//
// Embedded templates ({% embed %}) are complete sub-modules stored in the same
// arena and referenced by the module's "embedded_templates" attribute rather
// than as children.
//
// # Arrays
//
// Array literals use the flat key/value encoding of Twig: the children of an
// expression_array alternate key, value, key, value. Only odd positions hold
// element values.
package ast
