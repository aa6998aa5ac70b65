// Package parser turns Twig template source into an ast.Tree.
//
// Parsing happens in two steps, mirroring the Twig reference engine:
//
//	stream, err := parser.Tokenize(source)
//	tree, err := parser.NewParser().Parse(stream)
//
// Both steps fail with an *errors.Error of type syntax carrying the template
// location. Such failures are fatal for a compilation.
//
// # Supported syntax
//
// Tags: if/elseif/else, for (with else), set (inline and capture), block,
// extends, include, embed, import, from, macro, with, autoescape, do.
//
// Expressions: literals, arrays, hashes, names, attribute access and method
// calls, function calls with positional and named arguments, filters, tests,
// unary and binary operators with Twig precedence, the conditional operator
// in all three forms and parent().
package parser
