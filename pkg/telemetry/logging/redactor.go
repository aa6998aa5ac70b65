package logging

import (
	"os"
	"path/filepath"
	"strings"
)

// Redactor rewrites absolute paths under the user's home directory so logs
// shared from CI or bug reports do not leak account names.
type Redactor struct {
	home string
}

// NewRedactor creates a Redactor for the current user's home directory.
func NewRedactor() *Redactor {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return NewRedactorFor(home)
}

// NewRedactorFor creates a Redactor for home.
func NewRedactorFor(home string) *Redactor {
	home = strings.TrimRight(filepath.ToSlash(home), "/")
	return &Redactor{home: home}
}

// RedactString replaces occurrences of the home directory with "~".
func (r *Redactor) RedactString(value string) string {
	if r.home == "" || value == "" {
		return value
	}
	slashed := filepath.ToSlash(value)
	if !strings.Contains(slashed, r.home) {
		return value
	}
	return strings.ReplaceAll(slashed, r.home, "~")
}

// RedactArgs redacts string and []string values of key-value log arguments.
func (r *Redactor) RedactArgs(args ...any) []any {
	if r.home == "" || len(args) == 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 1; i < len(redacted); i += 2 {
		switch v := redacted[i].(type) {
		case string:
			redacted[i] = r.RedactString(v)
		case []string:
			out := make([]string, len(v))
			for j, s := range v {
				out[j] = r.RedactString(s)
			}
			redacted[i] = out
		case error:
			redacted[i] = r.RedactString(v.Error())
		}
	}

	return redacted
}
