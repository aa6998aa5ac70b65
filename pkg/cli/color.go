package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorMode controls when text output is colored.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorAlways, ColorNever:
		return ColorMode(s), nil
	}
	return "", fmt.Errorf("unsupported color mode %q: must be 'auto', 'always' or 'never'", s)
}

// Styles renders the status lines of text output.
type Styles struct {
	Success func(format string, a ...any) string
	Error   func(format string, a ...any) string
	Warning func(format string, a ...any) string
	Faint   func(format string, a ...any) string
	Bold    func(format string, a ...any) string

	colored bool
}

// NewStyles returns styles for w. In auto mode colors are used when w is a
// terminal and NO_COLOR is unset.
func NewStyles(w io.Writer, mode ColorMode) *Styles {
	enabled := mode == ColorAlways || (mode != ColorNever && isTerminal(w) && os.Getenv("NO_COLOR") == "")

	sprintf := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintfFunc()
	}

	return &Styles{
		Success: sprintf(color.FgGreen),
		Error:   sprintf(color.FgRed, color.Bold),
		Warning: sprintf(color.FgYellow),
		Faint:   sprintf(color.Faint),
		Bold:    sprintf(color.Bold),
		colored: enabled,
	}
}

// Colored reports whether the styles emit escape sequences.
func (s *Styles) Colored() bool {
	return s.colored
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
