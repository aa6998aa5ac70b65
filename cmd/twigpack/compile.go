package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
)

var compileFlags struct {
	output string
}

var compileCmd = &cobra.Command{
	Use:   "compile <template>",
	Short: "Compile one template to a JavaScript module",
	Long: `Compile a single template and print the generated module.

The template is precompiled unless a render context is configured, in which
case it is rendered and emitted as a string module. Unresolved template
names are left unchanged and reported as warnings.

Examples:
  # Print the module
  twigpack compile templates/page.twig

  # Write it to a file
  twigpack compile templates/page.twig -o dist/page.js

  # Production keys, JSON result with dependencies
  twigpack compile templates/page.twig --mode production --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileFlags.output, "output", "o", "", "write the module to this file instead of stdout")
}

// compileOutput is the JSON form of a compilation, code included.
type compileOutput struct {
	*build.Result
	Code string `json:"code"`
}

func runCompile(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	path, source, err := readTemplate(args[0])
	if err != nil {
		return cli.NewCommandError("compile", err)
	}

	host := build.NewRecordingHost(path)
	result, err := a.compiler.Compile(a.ctx, host, source)
	a.tel.Health().ObserveBuild(err)
	if err != nil {
		return cli.NewCommandError("compile", err)
	}

	for _, u := range result.Unresolved {
		fmt.Fprintln(cmd.ErrOrStderr(), a.styles.Warning("warning: %s:%d: template %q could not be resolved", args[0], u.Line, u.Name))
	}

	if compileFlags.output != "" {
		if err := os.MkdirAll(filepath.Dir(compileFlags.output), 0o755); err != nil {
			return cli.NewCommandError("compile", err)
		}
		if err := os.WriteFile(compileFlags.output, []byte(result.Code), 0o644); err != nil {
			return cli.NewCommandError("compile", fmt.Errorf("failed to write output: %w", err))
		}
		a.logger.Info("module written", "entry", result.Entry, "output", compileFlags.output, "key", result.Key)
		if a.format == cli.FormatJSON {
			return a.emit(result, nil)
		}
		return nil
	}

	return a.emit(compileOutput{Result: result, Code: result.Code}, func(w io.Writer) error {
		_, err := io.WriteString(w, result.Code+"\n")
		return err
	})
}
