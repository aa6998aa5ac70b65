package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q: must be 'text' or 'json'", s)
}

// Printer writes command results in one output format.
type Printer struct {
	w      io.Writer
	format OutputFormat
	stream bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, format OutputFormat) *Printer {
	return &Printer{w: w, format: format}
}

// Streaming returns a printer that writes each JSON result compactly on a
// single line, for commands printing a sequence of results.
func (p *Printer) Streaming() *Printer {
	return &Printer{w: p.w, format: p.format, stream: true}
}

// Format returns the output format.
func (p *Printer) Format() OutputFormat {
	return p.format
}

// Print writes data. In text format text renders it; a nil text writes
// JSON whatever the format.
func (p *Printer) Print(data any, text func(io.Writer) error) error {
	if p.format == FormatJSON || text == nil {
		return p.writeJSON(data)
	}
	return text(p.w)
}

// Textf writes a message in text format only. Machine-readable output
// carries results and nothing else.
func (p *Printer) Textf(format string, args ...any) {
	if p.format == FormatJSON {
		return
	}
	fmt.Fprintf(p.w, format, args...)
}

// writeJSON leaves HTML unescaped: results carry generated JavaScript.
func (p *Printer) writeJSON(data any) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	if !p.stream {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
