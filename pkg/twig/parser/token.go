package parser

import (
	"fmt"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// TokenType identifies the kind of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenText
	TokenBlockStart
	TokenBlockEnd
	TokenVarStart
	TokenVarEnd
	TokenName
	TokenNumber
	TokenString
	TokenOperator
	TokenPunctuation
)

var tokenTypeNames = map[TokenType]string{
	TokenEOF:         "end of template",
	TokenText:        "text",
	TokenBlockStart:  "begin of statement block",
	TokenBlockEnd:    "end of statement block",
	TokenVarStart:    "begin of print statement",
	TokenVarEnd:      "end of print statement",
	TokenName:        "name",
	TokenNumber:      "number",
	TokenString:      "string",
	TokenOperator:    "operator",
	TokenPunctuation: "punctuation",
}

// String returns a human-readable token type name.
func (t TokenType) String() string {
	if s, ok := tokenTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token is a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

// String returns a description of the token for error messages.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenBlockStart, TokenBlockEnd, TokenVarStart, TokenVarEnd:
		return t.Type.String()
	}
	return fmt.Sprintf("%s %q", t.Type, t.Value)
}

// Test reports whether the token has the given type and, when values are
// provided, one of the given values.
func (t Token) Test(typ TokenType, values ...string) bool {
	if t.Type != typ {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if t.Value == v {
			return true
		}
	}
	return false
}

// TokenStream is the sequence of tokens of one template.
type TokenStream struct {
	tokens  []Token
	current int
	source  *loader.Source
}

// NewTokenStream creates a stream over tokens.
func NewTokenStream(tokens []Token, source *loader.Source) *TokenStream {
	return &TokenStream{tokens: tokens, source: source}
}

// Source returns the source the tokens were produced from.
func (s *TokenStream) Source() *loader.Source {
	return s.source
}

// Tokens returns all tokens of the stream.
func (s *TokenStream) Tokens() []Token {
	return s.tokens
}

// Current returns the current token without consuming it.
func (s *TokenStream) Current() Token {
	return s.tokens[s.current]
}

// Look returns the token n positions ahead of the current one.
func (s *TokenStream) Look(n int) Token {
	i := s.current + n
	if i >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}
	return s.tokens[i]
}

// Next consumes and returns the current token.
func (s *TokenStream) Next() Token {
	tok := s.tokens[s.current]
	if s.current < len(s.tokens)-1 {
		s.current++
	}
	return tok
}

// NextIf consumes the current token if it matches.
func (s *TokenStream) NextIf(typ TokenType, values ...string) (Token, bool) {
	tok := s.Current()
	if tok.Test(typ, values...) {
		s.Next()
		return tok, true
	}
	return tok, false
}

// Test reports whether the current token matches.
func (s *TokenStream) Test(typ TokenType, values ...string) bool {
	return s.Current().Test(typ, values...)
}

// IsEOF reports whether the stream is exhausted.
func (s *TokenStream) IsEOF() bool {
	return s.Current().Type == TokenEOF
}

// Expect consumes the current token, failing if it does not match.
func (s *TokenStream) Expect(typ TokenType, values ...string) (Token, error) {
	tok := s.Current()
	if !tok.Test(typ, values...) {
		expected := typ.String()
		if len(values) > 0 {
			expected = fmt.Sprintf("%s %q", typ, values[0])
		}
		return tok, s.errorf(tok.Line, "Unexpected token %s (%s expected)", tok, expected)
	}
	s.Next()
	return tok, nil
}

func (s *TokenStream) errorf(line int, format string, args ...any) *twigerrors.Error {
	err := twigerrors.Syntax(ast.Location{File: s.source.Name, Line: line}, format, args...)
	return twigerrors.AddContextToError(err, s.source.Code)
}
