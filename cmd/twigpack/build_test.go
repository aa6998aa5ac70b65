package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
)

var buildTemplates = map[string]string{
	"pages/a.twig": "{% include 'shared.twig' %}",
	"pages/b.twig": "{% extends 'shared.twig' %}",
	"shared.twig":  "shared",
}

func TestBuildCommand(t *testing.T) {
	dir := setupProject(t, buildTemplates)

	out, err := run(t, runBuild)
	if err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if !strings.Contains(out, "2 entries, 2 changed, 0 failed") {
		t.Errorf("summary missing:\n%s", out)
	}
	for _, name := range []string{"a.js", "b.js"} {
		if _, err := os.Stat(filepath.Join(dir, "dist", "pages", name)); err != nil {
			t.Errorf("output %s missing: %v", name, err)
		}
	}

	// A second build changes nothing.
	out, err = run(t, runBuild)
	if err != nil {
		t.Fatalf("second runBuild() error = %v", err)
	}
	if !strings.Contains(out, "2 entries, 0 changed, 0 failed") {
		t.Errorf("second build summary:\n%s", out)
	}
}

func TestBuildCommandProgress(t *testing.T) {
	setupProject(t, buildTemplates)
	buildFlags.progress = true

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	if err := runBuild(cmd, nil); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}

	if !strings.Contains(errOut.String(), "2/2 entries (0 failed)") {
		t.Errorf("progress output = %q", errOut.String())
	}
	if strings.Contains(out.String(), "entries (") {
		t.Error("progress written to stdout")
	}
}

func TestBuildCommandRecordsManifest(t *testing.T) {
	dir := setupProject(t, buildTemplates)
	if _, err := run(t, runBuild); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}

	globalFlags.format = "json"
	depsFlags.reverse = true
	out, err := run(t, runDeps, filepath.Join(dir, "templates", "shared.twig"))
	if err != nil {
		t.Fatalf("runDeps(--reverse) error = %v", err)
	}

	var dependents []string
	if err := json.Unmarshal([]byte(out), &dependents); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(dependents) != 2 {
		t.Errorf("dependents = %v, want both pages", dependents)
	}
}

func TestBuildCommandCheck(t *testing.T) {
	dir := setupProject(t, buildTemplates)
	if _, err := run(t, runBuild); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}

	buildFlags.check = true
	if _, err := run(t, runBuild); err != nil {
		t.Fatalf("check of fresh output error = %v", err)
	}

	writeFile(t, filepath.Join(dir, "templates", "pages", "a.twig"), "changed")
	out, err := run(t, runBuild)
	if !errors.Is(err, build.ErrOutdated) {
		t.Fatalf("runBuild(--check) error = %v, want ErrOutdated", err)
	}
	if cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("ExitCode() = %d, want %d", cli.ExitCode(err), cli.ExitFailure)
	}
	if !strings.Contains(out, "DIFF") {
		t.Errorf("check output has no diff:\n%s", out)
	}
}

func TestBuildCommandFailure(t *testing.T) {
	dir := setupProject(t, map[string]string{
		"pages/good.twig": "good",
		"pages/bad.twig":  "{% if %}",
	})

	out, err := run(t, runBuild)
	if err == nil {
		t.Fatal("runBuild() with a broken entry should fail")
	}
	if !build.IsParseFailure(err) {
		t.Errorf("error = %v, want a parse failure", err)
	}
	if !strings.Contains(out, "FAIL") {
		t.Errorf("output does not report the failure:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "dist", "pages", "good.js")); err != nil {
		t.Errorf("good entry was not built: %v", err)
	}
}

func TestBuildCommandArgs(t *testing.T) {
	dir := setupProject(t, buildTemplates)
	buildFlags.outDir = filepath.Join(dir, "other")

	if _, err := run(t, runBuild, filepath.Join(dir, "templates", "pages", "a.twig")); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other", "pages", "a.js")); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other", "pages", "b.js")); err == nil {
		t.Error("entry not named on the command line was built")
	}
}

func TestBuildCommandNoEntries(t *testing.T) {
	dir := setupProject(t, nil)

	if _, err := run(t, runBuild, filepath.Join(dir, "templates", "*.twig")); err == nil {
		t.Error("runBuild() without matching entries should fail")
	}
}

func TestBuildCommandInvalidConfig(t *testing.T) {
	setupProject(t, buildTemplates)
	globalFlags.mode = "staging"

	_, err := run(t, runBuild)
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("ExitCode(%v) = %d, want %d", err, cli.ExitCode(err), cli.ExitConfig)
	}
}
