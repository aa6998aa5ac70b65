package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeTemplates creates files under dir and returns dir.
func writeTemplates(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, code := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestArrayLoader(t *testing.T) {
	ctx := context.Background()
	l := NewArrayLoader(map[string]string{"index.twig": "hello"})

	ok, err := l.Exists(ctx, "index.twig", nil)
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v, want true", ok, err)
	}
	if ok, _ := l.Exists(ctx, "missing.twig", nil); ok {
		t.Error("Exists(missing) = true")
	}

	src, err := l.GetSource(ctx, "index.twig", nil)
	if err != nil {
		t.Fatalf("GetSource() failed: %v", err)
	}
	if src.Code != "hello" || src.Name != "index.twig" || src.ResolvedName != "" {
		t.Errorf("source = %+v", src)
	}

	if _, err := l.Resolve(ctx, "missing.twig", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}

	l.SetTemplate("other.twig", "x")
	if ok, _ := l.Exists(ctx, "other.twig", nil); !ok {
		t.Error("SetTemplate did not register the template")
	}
}

func TestOverrideLoader_ResolvedName(t *testing.T) {
	l := NewOverrideLoader(map[string]string{"/app/views/index.twig": "code"})

	src, err := l.GetSource(context.Background(), "/app/views/index.twig", nil)
	if err != nil {
		t.Fatalf("GetSource() failed: %v", err)
	}
	if src.ResolvedName != "/app/views/index.twig" {
		t.Errorf("ResolvedName = %q, want the name itself", src.ResolvedName)
	}
}

func TestFilesystemLoader(t *testing.T) {
	ctx := context.Background()
	root := writeTemplates(t, t.TempDir(), map[string]string{
		"views/index.twig":          "index",
		"views/partials/nav.twig":   "nav",
		"views/partials/item.twig":  "item",
		"admin/layout.twig":         "admin",
		"fallback/only-here.twig":   "fallback",
		"views/partials/dir/x.twig": "x",
	})

	l, err := NewFilesystemLoader(root, "views", "fallback")
	if err != nil {
		t.Fatalf("NewFilesystemLoader() failed: %v", err)
	}
	if err := l.AddPath("admin", "admin"); err != nil {
		t.Fatalf("AddPath() failed: %v", err)
	}

	nav := filepath.Join(root, "views", "partials", "nav.twig")

	tests := []struct {
		name string
		tmpl string
		from *Source
		want string
	}{
		{"main namespace", "index.twig", nil, filepath.Join(root, "views", "index.twig")},
		{"nested", "partials/nav.twig", nil, nav},
		{"second search path", "only-here.twig", nil, filepath.Join(root, "fallback", "only-here.twig")},
		{"namespace", "@admin/layout.twig", nil, filepath.Join(root, "admin", "layout.twig")},
		{"relative to referrer", "./item.twig", Identity(nav), filepath.Join(root, "views", "partials", "item.twig")},
		{"parent relative to referrer", "../index.twig", Identity(nav), filepath.Join(root, "views", "index.twig")},
		{"absolute", nav, nil, nav},
		{"backslashes", `partials\nav.twig`, nil, nav},
		{"inner dot segments", "partials/dir/../nav.twig", nil, nav},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := l.Exists(ctx, tt.tmpl, tt.from)
			if err != nil || !ok {
				t.Fatalf("Exists(%q) = %v, %v, want true", tt.tmpl, ok, err)
			}
			got, err := l.Resolve(ctx, tt.tmpl, tt.from)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestFilesystemLoader_NotFound(t *testing.T) {
	ctx := context.Background()
	root := writeTemplates(t, t.TempDir(), map[string]string{
		"views/index.twig": "index",
		"secret.twig":      "secret",
	})
	l, err := NewFilesystemLoader(root, "views")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		tmpl string
		from *Source
	}{
		{"missing", "missing.twig", nil},
		{"escapes root", "../secret.twig", nil},
		{"escapes root inside name", "a/../../secret.twig", nil},
		{"unknown namespace", "@nope/index.twig", nil},
		{"malformed namespace", "@nope", nil},
		{"relative without referrer", "./index.twig", nil},
		{"empty", "", nil},
		{"nul byte", "index\x00.twig", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := l.Exists(ctx, tt.tmpl, tt.from)
			if err != nil {
				t.Fatalf("Exists(%q) error = %v, want nil", tt.tmpl, err)
			}
			if ok {
				t.Errorf("Exists(%q) = true, want false", tt.tmpl)
			}
			if _, err := l.Resolve(ctx, tt.tmpl, tt.from); !errors.Is(err, ErrNotFound) {
				t.Errorf("Resolve(%q) error = %v, want ErrNotFound", tt.tmpl, err)
			}
		})
	}
}

func TestFilesystemLoader_GetSource(t *testing.T) {
	root := writeTemplates(t, t.TempDir(), map[string]string{"index.twig": "Hello"})
	l, err := NewFilesystemLoader(root, ".")
	if err != nil {
		t.Fatal(err)
	}

	src, err := l.GetSource(context.Background(), "index.twig", nil)
	if err != nil {
		t.Fatalf("GetSource() failed: %v", err)
	}
	if src.Code != "Hello" || src.Name != "index.twig" {
		t.Errorf("source = %+v", src)
	}
	if src.ResolvedName != filepath.Join(root, "index.twig") {
		t.Errorf("ResolvedName = %q", src.ResolvedName)
	}
}

func TestFilesystemLoader_AddPathErrors(t *testing.T) {
	root := writeTemplates(t, t.TempDir(), map[string]string{"file.twig": ""})
	l, err := NewFilesystemLoader(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.AddPath("missing", ""); err == nil {
		t.Error("AddPath(missing) succeeded")
	}
	if err := l.AddPath("file.twig", ""); err == nil {
		t.Error("AddPath(file) succeeded")
	}
}

func TestFilesystemLoader_CanceledContext(t *testing.T) {
	l, err := NewFilesystemLoader(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Exists(ctx, "x.twig", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Exists() error = %v, want context.Canceled", err)
	}
}

func TestChainLoader(t *testing.T) {
	ctx := context.Background()
	first := NewArrayLoader(map[string]string{"a.twig": "first"})
	second := NewArrayLoader(map[string]string{"a.twig": "second", "b.twig": "b"})
	chain := NewChainLoader(first, second)

	src, err := chain.GetSource(ctx, "a.twig", nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Code != "first" {
		t.Errorf("a.twig served by %q, want first loader", src.Code)
	}

	src, err = chain.GetSource(ctx, "b.twig", nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Code != "b" {
		t.Errorf("b.twig = %q, want b", src.Code)
	}

	if ok, err := chain.Exists(ctx, "c.twig", nil); ok || err != nil {
		t.Errorf("Exists(c.twig) = %v, %v, want false, nil", ok, err)
	}
	var nf *NotFoundError
	if _, err := chain.Resolve(ctx, "c.twig", nil); !errors.As(err, &nf) {
		t.Errorf("Resolve(c.twig) error = %v, want *NotFoundError", err)
	}

	chain.AddLoader(NewArrayLoader(map[string]string{"c.twig": "c"}))
	if len(chain.Loaders()) != 3 {
		t.Errorf("len(Loaders()) = %d, want 3", len(chain.Loaders()))
	}
	if ok, _ := chain.Exists(ctx, "c.twig", nil); !ok {
		t.Error("added loader is not consulted")
	}
}
