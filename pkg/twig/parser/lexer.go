package parser

import (
	"strings"

	"mercator-hq/twigpack/pkg/twig/ast"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// Delimiters.
const (
	varStart     = "{{"
	varEnd       = "}}"
	blockStart   = "{%"
	blockEnd     = "%}"
	commentStart = "{#"
	commentEnd   = "#}"

	whitespaceTrim     = '-'
	whitespaceLineTrim = '~'
)

// Operators ordered so that longer lexemes win.
var (
	wordOperators = [][]string{
		{"not", "in"},
		{"is", "not"},
		{"starts", "with"},
		{"ends", "with"},
		{"b-and"},
		{"b-xor"},
		{"b-or"},
		{"matches"},
		{"and"},
		{"or"},
		{"not"},
		{"in"},
		{"is"},
	}
	symbolOperators = []string{
		"<=>", "==", "!=", "<=", ">=", "..", "**", "//", "??",
		"<", ">", "+", "-", "*", "/", "%", "~", "=",
	}
)

const punctuation = "()[]{}?:.,|"

type bracket struct {
	char byte
	line int
}

// lexer tokenizes a single template source.
type lexer struct {
	src      *loader.Source
	code     string
	pos      int
	line     int
	tokens   []Token
	brackets []bracket

	// trimNext strips leading whitespace from the next text token.
	trimNext byte
}

// Tokenize converts the template source into a token stream.
func Tokenize(source *loader.Source) (*TokenStream, error) {
	code := strings.ReplaceAll(source.Code, "\r\n", "\n")
	lx := &lexer{src: source, code: code, line: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return NewTokenStream(lx.tokens, source), nil
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.code) {
		start, kind := lx.nextTagStart()
		if start < 0 {
			lx.pushText(lx.code[lx.pos:], 0)
			lx.pos = len(lx.code)
			break
		}

		var modifier byte
		if start+2 < len(lx.code) {
			if c := lx.code[start+2]; c == whitespaceTrim || c == whitespaceLineTrim {
				modifier = c
			}
		}
		lx.pushText(lx.code[lx.pos:start], modifier)
		lx.pos = start + 2
		if modifier != 0 {
			lx.pos++
		}

		var err error
		switch kind {
		case commentStart:
			err = lx.lexComment(start)
		case blockStart:
			err = lx.lexTag(TokenBlockStart, TokenBlockEnd, blockEnd)
		case varStart:
			err = lx.lexTag(TokenVarStart, TokenVarEnd, varEnd)
		}
		if err != nil {
			return err
		}
	}

	lx.tokens = append(lx.tokens, Token{Type: TokenEOF, Line: lx.line})
	return nil
}

func (lx *lexer) nextTagStart() (int, string) {
	offset := lx.pos
	for {
		i := strings.IndexByte(lx.code[offset:], '{')
		if i < 0 || offset+i+1 >= len(lx.code) {
			return -1, ""
		}
		at := offset + i
		switch lx.code[at+1] {
		case '{':
			return at, varStart
		case '%':
			return at, blockStart
		case '#':
			return at, commentStart
		}
		offset = at + 1
	}
}

func (lx *lexer) pushText(text string, trimRight byte) {
	line := lx.line
	lx.line += strings.Count(text, "\n")

	switch lx.trimNext {
	case whitespaceTrim:
		text = strings.TrimLeft(text, " \t\n\r\x00\x0B")
	case whitespaceLineTrim:
		text = strings.TrimLeft(text, " \t\x00\x0B")
	}
	lx.trimNext = 0

	switch trimRight {
	case whitespaceTrim:
		text = strings.TrimRight(text, " \t\n\r\x00\x0B")
	case whitespaceLineTrim:
		text = strings.TrimRight(text, " \t\x00\x0B")
	}

	if text != "" {
		lx.tokens = append(lx.tokens, Token{Type: TokenText, Value: text, Line: line})
	}
}

func (lx *lexer) lexComment(start int) error {
	end := strings.Index(lx.code[lx.pos:], commentEnd)
	if end < 0 {
		return lx.errorf(lx.line, "Unclosed comment")
	}
	body := lx.code[lx.pos : lx.pos+end]
	lx.line += strings.Count(body, "\n")
	lx.pos += end + len(commentEnd)

	if n := len(body); n > 0 && (body[n-1] == whitespaceTrim || body[n-1] == whitespaceLineTrim) {
		lx.trimNext = body[n-1]
	} else {
		lx.skipNewline()
	}
	return nil
}

func (lx *lexer) lexTag(startType, endType TokenType, end string) error {
	startLine := lx.line
	lx.tokens = append(lx.tokens, Token{Type: startType, Line: startLine})

	for {
		lx.skipWhitespace()
		if lx.pos >= len(lx.code) {
			if startType == TokenBlockStart {
				return lx.errorf(startLine, "Unclosed \"block\"")
			}
			return lx.errorf(startLine, "Unclosed \"variable\"")
		}

		if len(lx.brackets) == 0 {
			if ok, modifier := lx.matchEnd(end); ok {
				lx.tokens = append(lx.tokens, Token{Type: endType, Line: lx.line})
				if modifier != 0 {
					lx.trimNext = modifier
				} else if endType == TokenBlockEnd {
					lx.skipNewline()
				}
				return nil
			}
		}

		if err := lx.lexExpressionToken(); err != nil {
			return err
		}
	}
}

func (lx *lexer) matchEnd(end string) (bool, byte) {
	rest := lx.code[lx.pos:]
	if len(rest) > 0 && (rest[0] == whitespaceTrim || rest[0] == whitespaceLineTrim) && strings.HasPrefix(rest[1:], end) {
		lx.pos += 1 + len(end)
		return true, rest[0]
	}
	if strings.HasPrefix(rest, end) {
		lx.pos += len(end)
		return true, 0
	}
	return false, 0
}

func (lx *lexer) lexExpressionToken() error {
	rest := lx.code[lx.pos:]
	c := rest[0]

	if op, n := matchWordOperator(rest); n > 0 {
		lx.push(TokenOperator, op)
		lx.advance(n)
		return nil
	}

	switch {
	case isNameStart(c):
		n := 1
		for n < len(rest) && isNameChar(rest[n]) {
			n++
		}
		lx.push(TokenName, rest[:n])
		lx.pos += n
		return nil

	case isDigit(c):
		n := 1
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
		if n+1 < len(rest) && rest[n] == '.' && isDigit(rest[n+1]) {
			n++
			for n < len(rest) && isDigit(rest[n]) {
				n++
			}
		}
		lx.push(TokenNumber, rest[:n])
		lx.pos += n
		return nil

	case c == '"' || c == '\'':
		return lx.lexString(c)
	}

	for _, op := range symbolOperators {
		if strings.HasPrefix(rest, op) {
			lx.push(TokenOperator, op)
			lx.pos += len(op)
			return nil
		}
	}

	if strings.IndexByte(punctuation, c) >= 0 {
		if err := lx.trackBracket(c); err != nil {
			return err
		}
		lx.push(TokenPunctuation, string(c))
		lx.pos++
		return nil
	}

	return lx.errorf(lx.line, "Unexpected character %q", string(c))
}

func (lx *lexer) trackBracket(c byte) error {
	switch c {
	case '(', '[', '{':
		lx.brackets = append(lx.brackets, bracket{char: c, line: lx.line})
	case ')', ']', '}':
		if len(lx.brackets) == 0 {
			return lx.errorf(lx.line, "Unexpected %q", string(c))
		}
		open := lx.brackets[len(lx.brackets)-1]
		lx.brackets = lx.brackets[:len(lx.brackets)-1]
		if closing(open.char) != c {
			return lx.errorf(open.line, "Unclosed %q", string(open.char))
		}
	}
	return nil
}

func (lx *lexer) lexString(quote byte) error {
	startLine := lx.line
	var sb strings.Builder
	i := lx.pos + 1
	for i < len(lx.code) {
		c := lx.code[i]
		switch {
		case c == '\\' && i+1 < len(lx.code):
			next := lx.code[i+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '"', '\'':
				sb.WriteByte(next)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			i += 2
			continue
		case c == quote:
			lx.tokens = append(lx.tokens, Token{Type: TokenString, Value: sb.String(), Line: startLine})
			lx.pos = i + 1
			return nil
		case c == '\n':
			lx.line++
		}
		sb.WriteByte(c)
		i++
	}
	return lx.errorf(startLine, "Unclosed string")
}

func (lx *lexer) push(typ TokenType, value string) {
	lx.tokens = append(lx.tokens, Token{Type: typ, Value: value, Line: lx.line})
}

func (lx *lexer) advance(n int) {
	lx.line += strings.Count(lx.code[lx.pos:lx.pos+n], "\n")
	lx.pos += n
}

func (lx *lexer) skipWhitespace() {
	for lx.pos < len(lx.code) {
		switch lx.code[lx.pos] {
		case '\n':
			lx.line++
		case ' ', '\t', '\r':
		default:
			return
		}
		lx.pos++
	}
}

func (lx *lexer) skipNewline() {
	if lx.pos < len(lx.code) && lx.code[lx.pos] == '\n' {
		lx.pos++
		lx.line++
	}
}

func (lx *lexer) errorf(line int, format string, args ...any) *twigerrors.Error {
	err := twigerrors.Syntax(ast.Location{File: lx.src.Name, Line: line}, format, args...)
	return twigerrors.AddContextToError(err, lx.code)
}

// matchWordOperator matches a word operator at the start of s. Multi-word
// operators accept any run of whitespace between their words. It returns the
// canonical operator and the number of bytes consumed.
func matchWordOperator(s string) (string, int) {
	for _, words := range wordOperators {
		n := 0
		ok := true
		for i, w := range words {
			if i > 0 {
				ws := 0
				for n+ws < len(s) && isSpace(s[n+ws]) {
					ws++
				}
				if ws == 0 {
					ok = false
					break
				}
				n += ws
			}
			if !strings.HasPrefix(s[n:], w) {
				ok = false
				break
			}
			n += len(w)
		}
		if ok && (n == len(s) || !isNameChar(s[n])) {
			return strings.Join(words, " "), n
		}
	}
	return "", 0
}

func closing(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x7f
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
