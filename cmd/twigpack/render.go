package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
)

var renderFlags struct {
	context     string
	contextFile string
	raw         bool
}

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template at build time",
	Long: `Render a template with a context and print the generated string module,
or with --raw the rendered text itself.

The context comes from --context (JSON), --context-file (YAML or JSON) or,
when neither is given, the configured render context. An empty context is
used when none is configured.

Examples:
  twigpack render templates/mail.twig --context '{"name": "World"}'
  twigpack render templates/mail.twig --context-file fixtures/mail.yaml --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderFlags.context, "context", "", "render context as a JSON object")
	renderCmd.Flags().StringVar(&renderFlags.contextFile, "context-file", "", "file holding the render context (YAML or JSON)")
	renderCmd.Flags().BoolVar(&renderFlags.raw, "raw", false, "print the rendered text instead of the module")
	renderCmd.MarkFlagsMutuallyExclusive("context", "context-file")
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	vars, err := renderContext(a.cfg.RenderContext)
	if err != nil {
		return cli.NewConfigError("context", err.Error())
	}
	if err := a.setRenderContext(vars); err != nil {
		return cli.NewCommandError("render", err)
	}

	path, source, err := readTemplate(args[0])
	if err != nil {
		return cli.NewCommandError("render", err)
	}

	result, err := a.compiler.Compile(a.ctx, build.NewRecordingHost(path), source)
	a.tel.Health().ObserveBuild(err)
	if err != nil {
		return cli.NewCommandError("render", err)
	}

	if !renderFlags.raw {
		return a.emit(compileOutput{Result: result, Code: result.Code}, func(w io.Writer) error {
			_, err := io.WriteString(w, result.Code+"\n")
			return err
		})
	}

	text, err := renderedText(result.Code)
	if err != nil {
		return cli.NewCommandError("render", err)
	}
	return a.emit(map[string]string{"entry": result.Entry, "output": text}, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// renderContext returns the variables selected by the flags, falling back
// to the configured context.
func renderContext(configured map[string]any) (map[string]any, error) {
	switch {
	case renderFlags.context != "":
		var vars map[string]any
		if err := json.Unmarshal([]byte(renderFlags.context), &vars); err != nil {
			return nil, fmt.Errorf("invalid JSON context: %w", err)
		}
		return vars, nil
	case renderFlags.contextFile != "":
		data, err := os.ReadFile(renderFlags.contextFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read context file: %w", err)
		}
		var vars map[string]any
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("invalid context file %s: %w", renderFlags.contextFile, err)
		}
		return vars, nil
	}
	return configured, nil
}

// renderedText extracts the string exported by a direct render module.
func renderedText(module string) (string, error) {
	literal, ok := strings.CutPrefix(module, "module.exports = ")
	if !ok {
		return "", fmt.Errorf("unexpected module: %.40q", module)
	}
	literal = strings.TrimSuffix(literal, ";")

	var text string
	if err := json.Unmarshal([]byte(literal), &text); err != nil {
		return "", fmt.Errorf("failed to decode rendered text: %w", err)
	}
	return text, nil
}
