package twig

import (
	"fmt"
	"net/url"
	"strings"
)

// Escaping strategies.
const (
	EscapeHTML = "html"
	EscapeJS   = "js"
	EscapeURL  = "url"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// escape applies strategy to v. Markup is returned unchanged.
func escape(v any, strategy string) (Markup, error) {
	if m, ok := v.(Markup); ok {
		return m, nil
	}
	s := toString(v)
	switch strategy {
	case EscapeHTML:
		return Markup(htmlReplacer.Replace(s)), nil
	case EscapeJS:
		return Markup(escapeJS(s)), nil
	case EscapeURL:
		return Markup(strings.ReplaceAll(url.QueryEscape(s), "+", "%20")), nil
	case "":
		return Markup(s), nil
	}
	return "", fmt.Errorf("invalid escaping strategy %q (valid ones: html, js, url)", strategy)
}

// escapeJS escapes every character outside [a-zA-Z0-9,._] as \uXXXX.
func escapeJS(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ',', r == '.', r == '_':
			sb.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&sb, `\u%04X\u%04X`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&sb, `\u%04X`, r)
		}
	}
	return sb.String()
}
