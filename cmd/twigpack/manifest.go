package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/cli"
	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/manifest"
	"mercator-hq/twigpack/pkg/manifest/retention"
)

var manifestFlags struct {
	olderThan   time.Duration
	keepMissing bool
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect and maintain the dependency manifest",
	Long: `The manifest records, for every built entry, its key, its output and the
files its last build depended on. "watch" uses it to find the entries to
rebuild.`,
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded entries",
	Args:  cobra.NoArgs,
	RunE:  runManifestList,
}

var manifestShowCmd = &cobra.Command{
	Use:   "show <template>",
	Short: "Show the record of one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestShow,
}

var manifestPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale entries",
	Long: `Remove entries built before the retention period and entries whose
template no longer exists.

Examples:
  # Apply the configured retention
  twigpack manifest prune

  # Drop everything not built in the last day, keep deleted templates
  twigpack manifest prune --older-than 24h --keep-missing`,
	Args: cobra.NoArgs,
	RunE: runManifestPrune,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestListCmd, manifestShowCmd, manifestPruneCmd)

	manifestPruneCmd.Flags().DurationVar(&manifestFlags.olderThan, "older-than", 0, "retention period (default from config)")
	manifestPruneCmd.Flags().BoolVar(&manifestFlags.keepMissing, "keep-missing", false, "keep entries whose template was deleted")
}

func runManifestList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireStore("manifest list"); err != nil {
		return err
	}

	entries, err := a.store.List(a.ctx)
	if err != nil {
		return cli.NewCommandError("manifest list", err)
	}
	a.tel.Metrics().UpdateManifestEntries(len(entries))

	return a.emit(entries, func(w io.Writer) error {
		if len(entries) == 0 {
			fmt.Fprintln(w, a.styles.Faint("manifest is empty"))
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tMODE\tDEPS\tCOMPILED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ResourcePath, e.Mode, len(e.Dependencies), e.CompiledAt.Format(time.RFC3339))
		}
		return tw.Flush()
	})
}

func runManifestShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireStore("manifest show"); err != nil {
		return err
	}

	path, err := absPath(args[0])
	if err != nil {
		return cli.NewCommandError("manifest show", err)
	}
	entry, err := a.store.Get(a.ctx, keys.Normalize(path))
	if errors.Is(err, manifest.ErrNotFound) {
		return cli.NewCommandError("manifest show", fmt.Errorf("%s has not been built", args[0]))
	}
	if err != nil {
		return cli.NewCommandError("manifest show", err)
	}

	return a.emit(entry, func(w io.Writer) error {
		fmt.Fprintln(w, a.styles.Bold("%s", entry.ResourcePath))
		fmt.Fprintf(w, "  key:         %s\n", entry.Key)
		fmt.Fprintf(w, "  mode:        %s (%s keys)\n", entry.Mode, entry.KeyMode)
		fmt.Fprintf(w, "  output:      %s\n", entry.OutputPath)
		fmt.Fprintf(w, "  compiled:    %s in %s\n", entry.CompiledAt.Format(time.RFC3339), entry.Duration)
		fmt.Fprintf(w, "  compilation: %s\n", entry.CompilationID)
		fmt.Fprintln(w, "  dependencies:")
		for _, dep := range entry.Dependencies {
			fmt.Fprintf(w, "    %s\n", dep)
		}
		return nil
	})
}

func runManifestPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireStore("manifest prune"); err != nil {
		return err
	}

	cfg := retention.FromManifestConfig(&a.cfg.Manifest)
	if manifestFlags.olderThan > 0 {
		cfg.Retention = manifestFlags.olderThan
	}
	cfg.KeepMissing = manifestFlags.keepMissing

	deleted, err := retention.NewPruner(a.store, cfg).Prune(a.ctx)
	if err != nil {
		return cli.NewCommandError("manifest prune", err)
	}

	return a.emit(map[string]int64{"deleted": deleted}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, a.styles.Success("✓ Pruned %d entries", deleted))
		return err
	})
}
