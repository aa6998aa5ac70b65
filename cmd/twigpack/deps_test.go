package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestDepsCommand(t *testing.T) {
	dir := setupProject(t, map[string]string{
		"pages/a.twig": "{% include 'partial.twig' %}{% include 'nope.twig' ignore missing %}",
		"partial.twig": "{% include 'nested.twig' %}",
		"nested.twig":  "nested",
	})
	globalFlags.format = "json"

	out, err := run(t, runDeps, filepath.Join(dir, "templates", "pages", "a.twig"))
	if err != nil {
		t.Fatalf("runDeps() error = %v", err)
	}

	var got struct {
		Dependencies []string `json:"dependencies"`
		References   []struct {
			Name string `json:"name"`
		} `json:"references"`
		Unresolved []struct {
			Name string `json:"name"`
		} `json:"unresolved"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}

	if len(got.Dependencies) < 2 || got.Dependencies[0] != "./twig.env.js" ||
		!strings.HasSuffix(got.Dependencies[1], "templates/partial.twig") {
		t.Errorf("dependencies = %v", got.Dependencies)
	}
	if len(got.References) != 1 || got.References[0].Name != "partial.twig" {
		t.Errorf("references = %+v", got.References)
	}
	if len(got.Unresolved) != 1 || got.Unresolved[0].Name != "nope.twig" {
		t.Errorf("unresolved = %+v", got.Unresolved)
	}
}

func TestDepsCommandText(t *testing.T) {
	dir := setupProject(t, map[string]string{
		"pages/a.twig": "{% include 'partial.twig' %}",
		"partial.twig": "p",
	})

	out, err := run(t, runDeps, filepath.Join(dir, "templates", "pages", "a.twig"))
	if err != nil {
		t.Fatalf("runDeps() error = %v", err)
	}
	if !strings.Contains(out, "dependencies:") || !strings.Contains(out, "partial.twig -> ") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDepsReverseWithoutManifest(t *testing.T) {
	dir := setupProject(t, map[string]string{"a.twig": "a"})
	globalFlags.noManifest = true
	depsFlags.reverse = true

	if _, err := run(t, runDeps, filepath.Join(dir, "templates", "a.twig")); err == nil {
		t.Error("runDeps(--reverse) without a manifest should fail")
	}
}
