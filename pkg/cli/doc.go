/*
Package cli provides command-line interface utilities for twigpack.

The cli package includes output formatters, terminal styling, progress
reporters, and common CLI helpers used by the twigpack command.

Output Formatting:

Command results are printed as text or JSON:

	printer := cli.NewPrinter(os.Stdout, format)
	err := printer.Print(report, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%d entries built\n", len(report.Results))
		return err
	})

Long-running commands use printer.Streaming() to emit one JSON document
per line.

Styling:

Styles color text output when the writer is a terminal:

	styles := cli.NewStyles(os.Stdout, cli.ColorAuto)
	fmt.Println(styles.Success("✓ %d entries built", n))

Progress Reporting:

For batch builds, use the progress reporter:

	progress := cli.NewProgress(os.Stderr)
	progress.Start(len(entries))
	// ... progress.Advance(failed) as entries finish
	progress.Finish()

Signal Handling:

The first SIGINT/SIGTERM cancels the returned context, a second one exits
with ExitInterrupted:

	ctx := cli.SetupSignalHandler()
*/
package cli
