package esbuild

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/keys"
)

func setup(t *testing.T, files map[string]string, renderContext map[string]any) (string, *build.Compiler) {
	t.Helper()
	dir := t.TempDir()
	for name, code := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	compiler, err := build.New(build.Config{
		EnvironmentModulePath: "./twig.env.js",
		KeyMode:               keys.Development,
		RenderContext:         renderContext,
		Environment: build.NewEnvironmentFactory(&config.EnvironmentConfig{
			RootPath:        dir,
			TemplatePaths:   []string{"templates"},
			Autoescape:      "html",
			MaxNestingLevel: 100,
		}, nil),
	})
	if err != nil {
		t.Fatalf("build.New() error = %v", err)
	}
	return dir, compiler
}

func testOptions(opts ...Option) *options {
	o := &options{filter: DefaultFilter, ctx: context.Background()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func TestLoadPrecompile(t *testing.T) {
	dir, compiler := setup(t, map[string]string{
		"templates/page.twig":    "{% include 'partial.twig' %}{% include 'nope.twig' ignore missing %}",
		"templates/partial.twig": "partial",
	}, nil)
	page := filepath.Join(dir, "templates", "page.twig")

	result := load(testOptions(WithUnresolvedWarnings(true)), slog.Default(), compiler, api.OnLoadArgs{Path: page})

	if len(result.Errors) != 0 {
		t.Fatalf("Errors = %+v", result.Errors)
	}
	if result.Contents == nil || !strings.Contains(*result.Contents, "env.registerTemplatesModule(templatesModule, ") {
		t.Fatalf("Contents = %v", result.Contents)
	}
	if result.Loader != api.LoaderJS {
		t.Errorf("Loader = %v, want LoaderJS", result.Loader)
	}
	if result.ResolveDir != filepath.Join(dir, "templates") {
		t.Errorf("ResolveDir = %q", result.ResolveDir)
	}

	want := []string{page, filepath.Join(dir, "templates", "partial.twig")}
	if len(result.WatchFiles) != len(want) || result.WatchFiles[0] != want[0] || result.WatchFiles[1] != want[1] {
		t.Errorf("WatchFiles = %v, want %v", result.WatchFiles, want)
	}

	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0].Text, "nope.twig") {
		t.Errorf("Warnings = %+v, want one for nope.twig", result.Warnings)
	}
}

func TestLoadDirectRender(t *testing.T) {
	dir, compiler := setup(t, map[string]string{
		"templates/page.twig": "Hello {{ name }}",
	}, map[string]any{"name": "esbuild"})

	result := load(testOptions(), slog.Default(), compiler, api.OnLoadArgs{Path: filepath.Join(dir, "templates", "page.twig")})

	if len(result.Errors) != 0 {
		t.Fatalf("Errors = %+v", result.Errors)
	}
	if got, want := *result.Contents, `module.exports = "Hello esbuild";`; got != want {
		t.Errorf("Contents = %q, want %q", got, want)
	}
}

func TestLoadParseFailure(t *testing.T) {
	dir, compiler := setup(t, map[string]string{
		"templates/bad.twig": "line one\n{% if %}",
	}, nil)
	bad := filepath.Join(dir, "templates", "bad.twig")

	result := load(testOptions(), slog.Default(), compiler, api.OnLoadArgs{Path: bad})

	if result.Contents != nil {
		t.Error("a failed compilation must not produce contents")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %+v, want one", result.Errors)
	}
	msg := result.Errors[0]
	if msg.Location == nil || msg.Location.File != bad || msg.Location.Line != 2 {
		t.Errorf("Location = %+v, want %s line 2", msg.Location, bad)
	}
	if msg.Detail != build.PhaseParse {
		t.Errorf("Detail = %v, want %q", msg.Detail, build.PhaseParse)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir, compiler := setup(t, nil, nil)

	result := load(testOptions(), slog.Default(), compiler, api.OnLoadArgs{Path: filepath.Join(dir, "missing.twig")})
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Text, "failed to read template") {
		t.Errorf("Errors = %+v", result.Errors)
	}
}

func TestWatchFiles(t *testing.T) {
	entry := filepath.FromSlash("/src/page.twig")
	got := watchFiles(entry, []string{"./twig.env.js", "/src/page.twig", "/src/partial.twig"})
	want := []string{entry, filepath.FromSlash("/src/partial.twig")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("watchFiles() = %v, want %v", got, want)
	}
}

func TestPluginBundle(t *testing.T) {
	dir, compiler := setup(t, map[string]string{
		"templates/page.twig":    "{% include 'partial.twig' %}",
		"templates/partial.twig": "partial",
		"templates/twig.env.js":  "module.exports = { registerTemplatesModule() {}, loadTemplate() {} };",
		"index.js":               "const page = require('./templates/page.twig');\nconsole.log(page);\n",
	}, nil)

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{filepath.Join(dir, "index.js")},
		Bundle:        true,
		Write:         false,
		Outfile:       filepath.Join(dir, "out.js"),
		Plugins:       []api.Plugin{Plugin(compiler)},
		AbsWorkingDir: dir,
		LogLevel:      api.LogLevelSilent,
	})

	if len(result.Errors) != 0 {
		t.Fatalf("Build() errors = %+v", result.Errors)
	}
	if len(result.OutputFiles) != 1 {
		t.Fatalf("OutputFiles = %d, want 1", len(result.OutputFiles))
	}
	out := string(result.OutputFiles[0].Contents)
	if !strings.Contains(out, "registerTemplatesModule") || !strings.Contains(out, "partial") {
		t.Errorf("bundle does not contain the compiled templates:\n%s", out)
	}
}
