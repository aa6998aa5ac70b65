package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

type printed struct {
	Entry string `json:"entry"`
	Code  string `json:"code"`
}

func TestPrinterPrint(t *testing.T) {
	data := printed{Entry: "page.twig", Code: "require('<env>');"}
	text := func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "compiled %s\n", data.Entry)
		return err
	}

	tests := []struct {
		name   string
		format OutputFormat
		text   func(io.Writer) error
		want   string
	}{
		{name: "text", format: FormatText, text: text, want: "compiled page.twig\n"},
		{name: "json", format: FormatJSON, text: text, want: "{\n  \"entry\": \"page.twig\",\n  \"code\": \"require('<env>');\"\n}\n"},
		{name: "text without renderer", format: FormatText, want: "{\n  \"entry\": \"page.twig\",\n  \"code\": \"require('<env>');\"\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewPrinter(&buf, tt.format).Print(data, tt.text); err != nil {
				t.Fatalf("Print() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Print() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrinterStreaming(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON).Streaming()
	for _, entry := range []string{"a.twig", "b.twig"} {
		if err := p.Print(printed{Entry: entry}, nil); err != nil {
			t.Fatal(err)
		}
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	for i, line := range lines {
		var got printed
		if err := json.Unmarshal([]byte(line), &got); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
	}
	if p.Format() != FormatJSON {
		t.Errorf("Format() = %q", p.Format())
	}
}

func TestPrinterTextf(t *testing.T) {
	var text, js bytes.Buffer
	NewPrinter(&text, FormatText).Textf("✓ %s\n", "done")
	NewPrinter(&js, FormatJSON).Textf("✓ %s\n", "done")

	if text.String() != "✓ done\n" {
		t.Errorf("text Textf() = %q", text.String())
	}
	if js.Len() != 0 {
		t.Errorf("json Textf() = %q, want nothing", js.String())
	}
}
