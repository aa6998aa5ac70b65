package errors

import (
	"fmt"
	"strings"
)

// ExtractContext returns the lines of code surrounding line (1-based),
// formatted with line numbers and an arrow on the offending line.
func ExtractContext(code string, line, contextLines int) string {
	if line <= 0 || code == "" {
		return ""
	}

	lines := strings.Split(code, "\n")
	errorLine := line - 1
	if errorLine >= len(lines) {
		return ""
	}

	startLine := max(errorLine-contextLines, 0)
	endLine := min(errorLine+contextLines, len(lines)-1)

	var sb strings.Builder
	maxLineNumWidth := len(fmt.Sprintf("%d", endLine+1))

	for i := startLine; i <= endLine; i++ {
		lineNumStr := fmt.Sprintf("%*d", maxLineNumWidth, i+1)
		prefix := "  "
		if i == errorLine {
			prefix = "->"
		}
		sb.WriteString(fmt.Sprintf("%s %s | %s\n", prefix, lineNumStr, lines[i]))
	}

	return sb.String()
}

// WithContext fills err.Context from the template source code.
func WithContext(err *Error, code string, contextLines int) *Error {
	if err.Location.Line > 0 && err.Context == "" {
		err.Context = ExtractContext(code, err.Location.Line, contextLines)
	}
	return err
}

// AddContextToError adds two lines of context on each side of the error.
func AddContextToError(err *Error, code string) *Error {
	return WithContext(err, code, 2)
}
