package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/twigpack/pkg/manifest"
)

func TestManifestCommands(t *testing.T) {
	dir := setupProject(t, buildTemplates)
	if _, err := run(t, runBuild); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}

	out, err := run(t, runManifestList)
	if err != nil {
		t.Fatalf("runManifestList() error = %v", err)
	}
	if !strings.Contains(out, "ENTRY") || !strings.Contains(out, "pages/a.twig") || !strings.Contains(out, "pages/b.twig") {
		t.Errorf("list output:\n%s", out)
	}

	globalFlags.format = "json"
	out, err = run(t, runManifestShow, filepath.Join(dir, "templates", "pages", "a.twig"))
	if err != nil {
		t.Fatalf("runManifestShow() error = %v", err)
	}
	var entry manifest.Entry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if entry.Mode != "precompile" || entry.KeyMode != "development" || !strings.HasSuffix(entry.OutputPath, "dist/pages/a.js") {
		t.Errorf("entry = %+v", entry)
	}

	// Deleting an entry template makes its record prunable.
	if err := os.Remove(filepath.Join(dir, "templates", "pages", "b.twig")); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, runManifestPrune)
	if err != nil {
		t.Fatalf("runManifestPrune() error = %v", err)
	}
	var pruned map[string]int64
	if err := json.Unmarshal([]byte(out), &pruned); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if pruned["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", pruned["deleted"])
	}

	if _, err := run(t, runManifestShow, filepath.Join(dir, "templates", "pages", "b.twig")); err == nil {
		t.Error("runManifestShow() of a pruned entry should fail")
	}
}

func TestManifestPruneKeepMissing(t *testing.T) {
	dir := setupProject(t, buildTemplates)
	if _, err := run(t, runBuild); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "templates", "pages", "b.twig")); err != nil {
		t.Fatal(err)
	}

	manifestFlags.keepMissing = true
	out, err := run(t, runManifestPrune)
	if err != nil {
		t.Fatalf("runManifestPrune() error = %v", err)
	}
	if !strings.Contains(out, "Pruned 0 entries") {
		t.Errorf("output = %q", out)
	}
}

func TestManifestDisabled(t *testing.T) {
	setupProject(t, buildTemplates)
	globalFlags.noManifest = true

	for name, fn := range map[string]func() (string, error){
		"list":  func() (string, error) { return run(t, runManifestList) },
		"prune": func() (string, error) { return run(t, runManifestPrune) },
	} {
		if _, err := fn(); err == nil {
			t.Errorf("manifest %s without a manifest should fail", name)
		}
	}
}
