package main

import (
	"path/filepath"
	"testing"

	"mercator-hq/twigpack/pkg/config"
)

func TestWatchPaths(t *testing.T) {
	root := filepath.FromSlash("/project")
	a := &app{cfg: &config.Config{Environment: config.EnvironmentConfig{
		RootPath:      root,
		TemplatePaths: []string{"templates", "templates/"},
		Namespaces: map[string][]string{
			"mail":   {"mail"},
			"admin":  {filepath.FromSlash("/shared/admin")},
			"legacy": {"templates"},
		},
	}}}

	got := a.watchPaths()
	want := []string{
		filepath.Join(root, "templates"),
		filepath.FromSlash("/shared/admin"),
		filepath.Join(root, "mail"),
	}
	if len(got) != len(want) {
		t.Fatalf("watchPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("watchPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTemplateRoot(t *testing.T) {
	root := filepath.FromSlash("/project")
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{name: "relative", paths: []string{"templates", "other"}, want: filepath.Join(root, "templates")},
		{name: "absolute", paths: []string{filepath.FromSlash("/abs/views")}, want: filepath.FromSlash("/abs/views")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{cfg: &config.Config{Environment: config.EnvironmentConfig{RootPath: root, TemplatePaths: tt.paths}}}
			if got := a.templateRoot(); got != tt.want {
				t.Errorf("templateRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}
