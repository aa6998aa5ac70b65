package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testConfig = `mode: development
entries:
  - "templates/pages/*.twig"
environment:
  module_path: ./twig.env.js
  root_path: %[1]s
  template_paths: [templates]
output:
  dir: %[1]s/dist
manifest:
  driver: sqlite
  path: %[1]s/manifest.db
telemetry:
  logging:
    level: error
`

// setupProject writes templates below dir/templates and a configuration
// pointing at them, and resets every command flag.
func setupProject(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, code := range templates {
		writeFile(t, filepath.Join(dir, "templates", filepath.FromSlash(name)), code)
	}

	path := filepath.Join(dir, "twigpack.yaml")
	writeFile(t, path, fmt.Sprintf(testConfig, filepath.ToSlash(dir)))

	resetFlags()
	cfgFile = path
	t.Cleanup(resetFlags)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func resetFlags() {
	cfgFile = ""
	verbose = false
	globalFlags.mode = ""
	globalFlags.logLevel = ""
	globalFlags.format = "text"
	globalFlags.color = "never"
	globalFlags.noManifest = false

	compileFlags.output = ""
	buildFlags.check = false
	buildFlags.clean = false
	buildFlags.failFast = false
	buildFlags.workers = 0
	buildFlags.outDir = ""
	buildFlags.progress = false
	depsFlags.reverse = false
	renderFlags.context = ""
	renderFlags.contextFile = ""
	renderFlags.raw = false
	lintFlags.strict = false
	manifestFlags.olderThan = 0
	manifestFlags.keepMissing = false
}

// run calls a command function with a fresh command capturing stdout.
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	err := fn(cmd, args)
	return out.String(), err
}
