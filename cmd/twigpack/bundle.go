package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/cli"
	"mercator-hq/twigpack/pkg/esbuild"
)

var bundleFlags struct {
	outfile   string
	outdir    string
	minify    bool
	sourcemap bool
	format    string
	platform  string
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <entry.js>...",
	Short: "Bundle JavaScript that imports templates",
	Long: `Bundle JavaScript entry points with esbuild. Imported .twig and
.html.twig files are compiled by twigpack, and the templates they reference
are pulled into the bundle.

Template errors are reported with their location; unresolved template
names are reported as warnings.

Examples:
  twigpack bundle src/index.js --outfile dist/app.js
  twigpack bundle src/index.js --outfile dist/app.js --minify --mode production`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)

	bundleCmd.Flags().StringVar(&bundleFlags.outfile, "outfile", "", "output file (single entry point)")
	bundleCmd.Flags().StringVar(&bundleFlags.outdir, "outdir", "", "output directory")
	bundleCmd.Flags().BoolVar(&bundleFlags.minify, "minify", false, "minify the bundle")
	bundleCmd.Flags().BoolVar(&bundleFlags.sourcemap, "sourcemap", false, "emit linked source maps")
	bundleCmd.Flags().StringVar(&bundleFlags.format, "module-format", "iife", "output module format: iife, cjs, esm")
	bundleCmd.Flags().StringVar(&bundleFlags.platform, "platform", "browser", "target platform: browser, node, neutral")
	bundleCmd.MarkFlagsMutuallyExclusive("outfile", "outdir")
}

func runBundle(cmd *cobra.Command, args []string) error {
	format, err := bundleFormat(bundleFlags.format)
	if err != nil {
		return cli.NewConfigError("module-format", err.Error())
	}
	platform, err := bundlePlatform(bundleFlags.platform)
	if err != nil {
		return cli.NewConfigError("platform", err.Error())
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	opts := api.BuildOptions{
		EntryPoints:       args,
		Bundle:            true,
		Write:             true,
		Outfile:           bundleFlags.outfile,
		Outdir:            bundleFlags.outdir,
		MinifyWhitespace:  bundleFlags.minify,
		MinifyIdentifiers: bundleFlags.minify,
		MinifySyntax:      bundleFlags.minify,
		Format:            format,
		Platform:          platform,
		AbsWorkingDir:     a.cfg.Environment.RootPath,
		LogLevel:          api.LogLevelSilent,
		Plugins: []api.Plugin{esbuild.Plugin(a.compiler,
			esbuild.WithContext(a.ctx),
			esbuild.WithLogger(a.logger),
			esbuild.WithUnresolvedWarnings(true),
		)},
	}
	if bundleFlags.sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	result := api.Build(opts)

	for _, m := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), a.styles.Warning("warning: %s", formatMessage(m)))
	}
	for _, m := range result.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), a.styles.Error("error: %s", formatMessage(m)))
	}
	var bundleErr error
	if len(result.Errors) > 0 {
		bundleErr = fmt.Errorf("%d error(s)", len(result.Errors))
	}
	a.tel.Health().ObserveBuild(bundleErr)
	if bundleErr != nil {
		return cli.NewCommandError("bundle", bundleErr)
	}

	files := make([]string, 0, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		files = append(files, f.Path)
	}
	return a.emit(files, func(w io.Writer) error {
		for _, f := range files {
			fmt.Fprintln(w, a.styles.Success("✓ %s", f))
		}
		return nil
	})
}

func formatMessage(m api.Message) string {
	var sb strings.Builder
	if m.Location != nil {
		fmt.Fprintf(&sb, "%s:%d:%d: ", m.Location.File, m.Location.Line, m.Location.Column)
	}
	sb.WriteString(m.Text)
	for _, n := range m.Notes {
		sb.WriteString("\n  ")
		sb.WriteString(strings.ReplaceAll(n.Text, "\n", "\n  "))
	}
	return sb.String()
}

func bundleFormat(s string) (api.Format, error) {
	switch s {
	case "iife":
		return api.FormatIIFE, nil
	case "cjs":
		return api.FormatCommonJS, nil
	case "esm":
		return api.FormatESModule, nil
	}
	return api.FormatDefault, fmt.Errorf("unsupported module format %q", s)
}

func bundlePlatform(s string) (api.Platform, error) {
	switch s {
	case "browser":
		return api.PlatformBrowser, nil
	case "node":
		return api.PlatformNode, nil
	case "neutral":
		return api.PlatformNeutral, nil
	}
	return api.PlatformBrowser, fmt.Errorf("unsupported platform %q", s)
}
