package codegen

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/twigpack/pkg/twig/ast"
	"mercator-hq/twigpack/pkg/twig/loader"
	"mercator-hq/twigpack/pkg/twig/parser"
)

func compileSource(t *testing.T, code string) string {
	t.Helper()
	stream, err := parser.Tokenize(loader.NewSource(code, "index.twig", "index.twig"))
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	tree, err := parser.NewParser().Parse(stream)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out, err := Compile(tree)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return out
}

func moduleName(t *testing.T, code string) string {
	t.Helper()
	if !strings.HasPrefix(code, Prefix) || !strings.HasSuffix(code, ";") {
		t.Fatalf("code is not a module body: %q", code)
	}
	var m struct {
		Name   string          `json:"name"`
		Module json.RawMessage `json:"module"`
	}
	body := strings.TrimSuffix(strings.TrimPrefix(code, Prefix), ";")
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("module body is not JSON: %v", err)
	}
	if len(m.Module) == 0 {
		t.Fatalf("module body has no module node: %s", body)
	}
	return m.Name
}

func TestCompile_ModuleShape(t *testing.T) {
	out := compileSource(t, `Hello {% include "partial.twig" %}`)

	if name := moduleName(t, out); name != "index.twig" {
		t.Errorf("name = %q, want index.twig", name)
	}
	if strings.Contains(out, "\n") {
		t.Errorf("code should be a single line, got %q", out)
	}
	for _, want := range []string{
		`"type":"module"`,
		`"type":"include"`,
		`["expr",{"type":"expression_constant"`,
		`"value":"partial.twig"`,
		`"data":"Hello "`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("code missing %s:\n%s", want, out)
		}
	}
}

func TestCompile_ChildOrderIsPreserved(t *testing.T) {
	out := compileSource(t, `{{ f(1, 2, named=3) }}`)

	first := strings.Index(out, `["0",`)
	second := strings.Index(out, `["1",`)
	named := strings.Index(out, `["named",`)
	if first < 0 || second < 0 || named < 0 {
		t.Fatalf("arguments missing from %s", out)
	}
	if !(first < second && second < named) {
		t.Errorf("arguments out of order: 0@%d 1@%d named@%d", first, second, named)
	}
}

func TestCompile_EmbeddedTemplatesAreInlined(t *testing.T) {
	out := compileSource(t, `{% embed "base.twig" %}{% block a %}x{% endblock %}{% endembed %}`)

	if !strings.Contains(out, `"embedded_templates":[{"type":"module"`) {
		t.Errorf("embedded template not inlined:\n%s", out)
	}
	if !strings.Contains(out, `"value":"base.twig"`) {
		t.Errorf("embedded parent missing:\n%s", out)
	}
}

func TestCompile_NoHTMLEscaping(t *testing.T) {
	out := compileSource(t, `<p>{{ a }}</p>`)
	if !strings.Contains(out, `"data":"<p>"`) {
		t.Errorf("HTML should not be escaped:\n%s", out)
	}
}

func TestCompile_NoHTMLEscapingNested(t *testing.T) {
	out := compileSource(t, `{% if a %}<b>&amp;</b>{% endif %}{% block c %}<i>{% endblock %}`)
	for _, want := range []string{`"data":"<b>&amp;</b>"`, `"data":"<i>"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, `\u003c`) || strings.Contains(out, `\u0026`) {
		t.Errorf("nested text was HTML escaped:\n%s", out)
	}
}

func TestCompile_EmptyTree(t *testing.T) {
	if _, err := Compile(nil); err == nil {
		t.Error("Compile(nil) should fail")
	}
	if _, err := Compile(ast.NewTree("empty")); err == nil {
		t.Error("Compile() of a tree without root should fail")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	src := `{% set x = {b: 1, a: 2} %}{% include x ? "a.twig" : "b.twig" %}`
	if a, b := compileSource(t, src), compileSource(t, src); a != b {
		t.Errorf("output differs between runs:\n%s\n%s", a, b)
	}
}
