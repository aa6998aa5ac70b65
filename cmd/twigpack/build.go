package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
)

var buildFlags struct {
	check    bool
	clean    bool
	failFast bool
	workers  int
	outDir   string
	progress bool
}

var buildCmd = &cobra.Command{
	Use:   "build [pattern...]",
	Short: "Compile entry templates into the output directory",
	Long: `Compile every entry template into a JavaScript module.

Entries are the patterns given on the command line (relative to the working
directory) or the configured entries (relative to the root path). Patterns
support "**". Each module is written below the output directory, mirroring
the layout of the first template path. Unchanged modules are not rewritten.

With --check nothing is written; the command fails when any module differs
from what would be generated and prints the differences.

Examples:
  # Build the configured entries
  twigpack build

  # Build a subset
  twigpack build 'templates/pages/**/*.twig'

  # Verify committed output in CI
  twigpack build --check --mode production`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildFlags.check, "check", false, "fail if any output is out of date instead of writing")
	buildCmd.Flags().BoolVar(&buildFlags.clean, "clean", false, "remove the output directory first")
	buildCmd.Flags().BoolVar(&buildFlags.failFast, "fail-fast", false, "stop at the first failing entry")
	buildCmd.Flags().IntVarP(&buildFlags.workers, "workers", "w", 0, "concurrent compilations (default from config)")
	buildCmd.Flags().StringVarP(&buildFlags.outDir, "out-dir", "o", "", "output directory (default from config)")
	buildCmd.Flags().BoolVar(&buildFlags.progress, "progress", false, "show progress on stderr")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.entries(args)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return cli.NewCommandError("build", fmt.Errorf("no entry templates matched"))
	}

	opts := build.BuilderOptions{
		OutputDir: buildFlags.outDir,
		Workers:   buildFlags.workers,
		FailFast:  buildFlags.failFast || a.cfg.Build.FailFast,
		Check:     buildFlags.check,
		Clean:     (buildFlags.clean || a.cfg.Output.Clean) && !buildFlags.check,
	}
	if buildFlags.progress {
		progress := cli.NewProgress(cmd.ErrOrStderr())
		progress.Start(len(entries))
		defer progress.Finish()

		opts.OnResult = func(res *build.EntryResult) {
			progress.Advance(res.Err != nil)
		}
	}

	report, err := a.builder(opts).Build(a.ctx, entries)
	if err != nil {
		return cli.NewCommandError("build", err)
	}
	buildErr := report.Err()
	a.tel.Health().ObserveBuild(buildErr)

	if a.store != nil {
		if all, err := a.store.List(a.ctx); err == nil {
			a.tel.Metrics().UpdateManifestEntries(len(all))
		}
	}

	if err := a.emit(report, func(w io.Writer) error {
		return printReport(w, a.styles, report)
	}); err != nil {
		return err
	}

	if buildErr != nil {
		return cli.NewCommandError("build", buildErr)
	}
	return nil
}

func printReport(w io.Writer, styles *cli.Styles, report *build.Report) error {
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "%s %s\n", styles.Error("FAIL"), res.Entry)
			fmt.Fprintf(w, "     %v\n", res.Err)
		case res.Changed && report.Check:
			fmt.Fprintf(w, "%s %s\n", styles.Warning("DIFF"), res.Output)
			if res.Diff != "" {
				fmt.Fprint(w, styles.Faint("%s", res.Diff))
			}
		case res.Changed:
			fmt.Fprintf(w, "%s %s\n", styles.Success("WROTE"), res.Output)
		default:
			fmt.Fprintf(w, "%s %s\n", styles.Faint("ok"), res.Output)
		}
	}

	failed, changed := len(report.Failed()), len(report.Changed())
	summary := fmt.Sprintf("%d entries, %d changed, %d failed in %s",
		len(report.Results), changed, failed, report.Duration.Round(time.Millisecond))
	switch {
	case failed > 0:
		summary = styles.Error("%s", summary)
	case report.Check && changed > 0:
		summary = styles.Warning("%s", summary)
	default:
		summary = styles.Success("%s", summary)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
