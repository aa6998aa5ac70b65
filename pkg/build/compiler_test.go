package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
)

const envModule = "./twig.env.js"

// fixture writes templates under dir/templates and returns the directory.
func fixture(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, code := range templates {
		path := filepath.Join(dir, "templates", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func templatePath(dir, name string) string {
	return keys.Normalize(filepath.Join(dir, "templates", filepath.FromSlash(name)))
}

func newCompiler(t *testing.T, dir string, mode keys.Mode, renderContext map[string]any, opts ...Option) *Compiler {
	t.Helper()
	env := &config.EnvironmentConfig{
		RootPath:        dir,
		TemplatePaths:   []string{"templates"},
		Autoescape:      "html",
		MaxNestingLevel: 100,
	}
	c, err := New(Config{
		EnvironmentModulePath: envModule,
		KeyMode:               mode,
		RenderContext:         renderContext,
		Environment:           NewEnvironmentFactory(env, nil),
	}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name    string
		context map[string]any
		want    Mode
	}{
		{name: "no context", context: nil, want: ModePrecompile},
		{name: "empty context", context: map[string]any{}, want: ModeDirectRender},
		{name: "context", context: map[string]any{"a": 1}, want: ModeDirectRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectMode(tt.context); got != tt.want {
				t.Errorf("SelectMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	factory := StaticEnvironment(nil)

	if _, err := New(Config{Environment: factory}); !errors.Is(err, ErrNoModulePath) {
		t.Errorf("New() without module path error = %v, want ErrNoModulePath", err)
	}
	if _, err := New(Config{EnvironmentModulePath: envModule}); err == nil {
		t.Error("New() without environment factory should fail")
	}

	c, err := New(Config{EnvironmentModulePath: envModule, Environment: factory})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Mode() != ModePrecompile {
		t.Errorf("Mode() = %v, want %v", c.Mode(), ModePrecompile)
	}
	if c.KeyMode() != keys.Development {
		t.Errorf("KeyMode() = %v, want %v", c.KeyMode(), keys.Development)
	}
}

func TestCompilePrecompile(t *testing.T) {
	dir := fixture(t, map[string]string{
		"page.twig":    "{% include 'partial.twig' %}{% include 'missing.twig' ignore missing %}{% include 'partial.twig' %}",
		"partial.twig": "partial",
	})
	entry := templatePath(dir, "page.twig")
	partial := templatePath(dir, "partial.twig")

	c := newCompiler(t, dir, keys.Development, nil)
	host := NewRecordingHost(entry)
	source, _ := os.ReadFile(entry)

	result, err := c.Compile(context.Background(), host, string(source))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if result.Mode != ModePrecompile {
		t.Errorf("Mode = %v, want %v", result.Mode, ModePrecompile)
	}
	if result.Key != entry {
		t.Errorf("Key = %q, want %q", result.Key, entry)
	}
	wantDeps := []string{envModule, partial}
	if !reflect.DeepEqual(result.Dependencies, wantDeps) {
		t.Errorf("Dependencies = %v, want %v", result.Dependencies, wantDeps)
	}
	if !reflect.DeepEqual(host.Dependencies(), wantDeps) {
		t.Errorf("host dependencies = %v, want %v", host.Dependencies(), wantDeps)
	}
	if len(result.Unresolved) != 1 || result.Unresolved[0].Name != "missing.twig" {
		t.Errorf("Unresolved = %+v, want missing.twig", result.Unresolved)
	}
	if len(result.References) != 2 {
		t.Errorf("References = %+v, want 2", result.References)
	}
	if result.CompilationID == "" {
		t.Error("CompilationID is empty")
	}

	code := result.Code
	prefix := "const env = require('./twig.env.js');\nlet templatesModule = (() => {\nlet module = {\n    exports: undefined\n};\n\nmodule.exports = "
	if !strings.HasPrefix(code, prefix) {
		t.Errorf("code does not start with the environment require and module wrapper:\n%s", code)
	}
	middle := "\n\n    return module.exports;\n})();\n\nrequire('" + partial + "');\nenv.registerTemplatesModule(templatesModule, '" + entry + "');\n"
	if !strings.Contains(code, middle) {
		t.Errorf("code lacks the dependency requires and registration:\n%s", code)
	}
	suffix := "\nlet loadTemplate = () => env.loadTemplate('" + entry + "');\n\nmodule.exports = (context = {}) => {\n    return loadTemplate().then((template) => template.render(context));\n};"
	if !strings.HasSuffix(code, suffix) {
		t.Errorf("code does not end with the render export:\n%s", code)
	}
	if strings.Count(code, "require('"+partial+"')") != 1 {
		t.Error("discovered template required more than once")
	}
}

func TestCompilePrecompileProductionKeys(t *testing.T) {
	dir := fixture(t, map[string]string{
		"page.twig":    "{% include ['missing.twig', 'partial.twig'] %}",
		"partial.twig": "partial",
	})
	entry := templatePath(dir, "page.twig")
	partial := templatePath(dir, "partial.twig")

	c := newCompiler(t, dir, keys.Production, nil)
	source, _ := os.ReadFile(entry)
	result, err := c.Compile(context.Background(), NewRecordingHost(entry), string(source))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(result.Key) {
		t.Errorf("Key = %q, want a hex SHA-256 digest", result.Key)
	}
	if result.Key != c.Key(entry) {
		t.Errorf("Key = %q, want %q", result.Key, c.Key(entry))
	}

	partialKey := keys.NewDeriver(keys.Production).PathKey(partial)
	if !strings.Contains(result.Code, `"`+partialKey+`"`) {
		t.Errorf("rewritten key %s missing from code:\n%s", partialKey, result.Code)
	}
	if !strings.Contains(result.Code, `"missing.twig"`) {
		t.Error("unresolved literal should be left unchanged")
	}
	if !strings.Contains(result.Code, "env.registerTemplatesModule(templatesModule, '"+result.Key+"');") {
		t.Error("module not registered under the production key")
	}
	// Dependencies stay real paths; only keys are hashed.
	if !reflect.DeepEqual(result.Dependencies, []string{envModule, partial}) {
		t.Errorf("Dependencies = %v", result.Dependencies)
	}
}

func TestCompileParseFailure(t *testing.T) {
	dir := fixture(t, map[string]string{"page.twig": ""})
	entry := templatePath(dir, "page.twig")

	c := newCompiler(t, dir, keys.Development, nil)
	result, err := c.Compile(context.Background(), NewRecordingHost(entry), "{% if %}")
	if err == nil {
		t.Fatal("Compile() should fail on a syntax error")
	}
	if result != nil {
		t.Errorf("Compile() result = %+v, want nil", result)
	}
	if !IsParseFailure(err) {
		t.Errorf("IsParseFailure(%v) = false", err)
	}
	if !twigerrors.IsType(err, twigerrors.ErrorTypeSyntax) {
		t.Errorf("error %v is not a syntax error", err)
	}

	var ce *CompileError
	if !errors.As(err, &ce) || ce.Entry != entry {
		t.Errorf("CompileError entry = %+v, want %q", ce, entry)
	}
}

func TestCompileDirectRender(t *testing.T) {
	dir := fixture(t, map[string]string{
		"page.twig":    "stale on disk",
		"partial.twig": "<b>{{ name }}</b>",
	})
	entry := templatePath(dir, "page.twig")
	partial := templatePath(dir, "partial.twig")

	c := newCompiler(t, dir, keys.Development, map[string]any{"name": "World"})
	if c.Mode() != ModeDirectRender {
		t.Fatalf("Mode() = %v, want %v", c.Mode(), ModeDirectRender)
	}

	host := NewRecordingHost(entry)
	source := `Hello {{ name }}!{% include 'partial.twig' %}{% include 'nope.twig' ignore missing %}`
	result, err := c.Compile(context.Background(), host, source)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := `module.exports = "Hello World!<b>World</b>";`
	if result.Code != want {
		t.Errorf("Code = %s, want %s", result.Code, want)
	}

	wantDeps := []string{envModule, entry, partial}
	if !reflect.DeepEqual(result.Dependencies, wantDeps) {
		t.Errorf("Dependencies = %v, want %v", result.Dependencies, wantDeps)
	}
}

func TestCompileDirectRenderError(t *testing.T) {
	dir := fixture(t, map[string]string{"page.twig": ""})
	entry := templatePath(dir, "page.twig")

	c := newCompiler(t, dir, keys.Development, map[string]any{})
	_, err := c.Compile(context.Background(), NewRecordingHost(entry), "{% include 'nope.twig' %}")

	var ce *CompileError
	if !errors.As(err, &ce) || ce.Phase != PhaseRender {
		t.Fatalf("Compile() error = %v, want a render failure", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := fixture(t, map[string]string{
		"page.twig": "{% extends 'base.twig' %}",
		"base.twig": "base",
	})
	entry := templatePath(dir, "page.twig")

	// Discovery ignores the render context.
	c := newCompiler(t, dir, keys.Development, map[string]any{"a": 1})
	source, _ := os.ReadFile(entry)
	result, err := c.Discover(context.Background(), NewRecordingHost(entry), string(source))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if result.Code != "" {
		t.Errorf("Code = %q, want empty", result.Code)
	}
	want := []string{envModule, templatePath(dir, "base.twig")}
	if !reflect.DeepEqual(result.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v", result.Dependencies, want)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	compiles []string
	errors   []string
	refs     [3]int
}

func (r *fakeRecorder) RecordCompile(entry, mode, status string, _ time.Duration, deps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiles = append(r.compiles, mode+":"+status)
}

func (r *fakeRecorder) RecordCompileError(mode, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, mode+":"+phase)
}

func (r *fakeRecorder) RecordReferences(tracked, rewritten, unresolved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[0] += tracked
	r.refs[1] += rewritten
	r.refs[2] += unresolved
}

func TestCompileObservability(t *testing.T) {
	dir := fixture(t, map[string]string{
		"page.twig":    "{% include 'partial.twig' %}{{ include('gone.twig') }}",
		"partial.twig": "partial",
	})
	entry := templatePath(dir, "page.twig")

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     "always",
		SampleRatio: 1,
		ServiceName: "twigpack-test",
	}, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	recorder := &fakeRecorder{}
	c := newCompiler(t, dir, keys.Development, nil, WithRecorder(recorder), WithTracer(tracer))

	source, _ := os.ReadFile(entry)
	if _, err := c.Compile(context.Background(), NewRecordingHost(entry), string(source)); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, err := c.Compile(context.Background(), NewRecordingHost(entry), "{{"); err == nil {
		t.Fatal("Compile() should fail")
	}

	wantCompiles := []string{"precompile:success", "precompile:error"}
	if !reflect.DeepEqual(recorder.compiles, wantCompiles) {
		t.Errorf("compiles = %v, want %v", recorder.compiles, wantCompiles)
	}
	if !reflect.DeepEqual(recorder.errors, []string{"precompile:parse"}) {
		t.Errorf("errors = %v", recorder.errors)
	}
	if recorder.refs != [3]int{1, 1, 1} {
		t.Errorf("references = %v, want [1 1 1]", recorder.refs)
	}

	if err := tracer.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	names := map[string]int{}
	for _, span := range exporter.GetSpans() {
		names[span.Name]++
	}
	for _, name := range []string{tracing.SpanCompile, tracing.SpanParse, tracing.SpanDiscover, tracing.SpanCodegen} {
		if names[name] == 0 {
			t.Errorf("no %s span recorded (got %v)", name, names)
		}
	}
	if names[tracing.SpanCompile] != 2 {
		t.Errorf("%s spans = %d, want 2", tracing.SpanCompile, names[tracing.SpanCompile])
	}
}

func TestCompileConcurrent(t *testing.T) {
	dir := fixture(t, map[string]string{
		"a.twig":       "{% include 'partial.twig' %}",
		"b.twig":       "{% include 'partial.twig' %}",
		"partial.twig": "partial",
	})
	c := newCompiler(t, dir, keys.Production, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{"a.twig", "b.twig"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			entry := templatePath(dir, name)
			source, _ := os.ReadFile(entry)
			_, err := c.Compile(context.Background(), NewRecordingHost(entry), string(source))
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Compile() error = %v", err)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "./env.js", want: `'./env.js'`},
		{in: "it's", want: `'it\'s'`},
		{in: `\\?\C:\x`, want: `'\\\\?\\C:\\x'`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestJSONString(t *testing.T) {
	got, err := jsonString("<p class=\"x\">a & b</p>\n")
	if err != nil {
		t.Fatal(err)
	}
	want := `"<p class=\"x\">a & b</p>\n"`
	if got != want {
		t.Errorf("jsonString() = %s, want %s", got, want)
	}
}

func TestRecordingHost(t *testing.T) {
	host := NewRecordingHost("/a.twig")
	host.AddDependency("/b.twig")
	host.AddDependency("/c.twig")
	host.AddDependency("/b.twig")

	if host.ResourcePath() != "/a.twig" {
		t.Errorf("ResourcePath() = %q", host.ResourcePath())
	}
	want := []string{"/b.twig", "/c.twig"}
	if !reflect.DeepEqual(host.Dependencies(), want) {
		t.Errorf("Dependencies() = %v, want %v", host.Dependencies(), want)
	}
}
