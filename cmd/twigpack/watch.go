package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
	"mercator-hq/twigpack/pkg/manifest"
	"mercator-hq/twigpack/pkg/manifest/retention"
	"mercator-hq/twigpack/pkg/server"
	"mercator-hq/twigpack/pkg/watch"
)

var watchFlags struct {
	listen  string
	noBuild bool
}

var watchCmd = &cobra.Command{
	Use:   "watch [pattern...]",
	Short: "Rebuild entries when templates change",
	Long: `Build the entries, then watch the template paths and rebuild the entries
affected by each batch of changes.

An entry is affected when it changed itself or when its last build depended
on a changed file, as recorded in the manifest. Deleted entries lose their
output. New files matching the entry patterns are built as they appear.

When a listen address is configured, metrics and health endpoints are
served while watching; readiness fails while the last rebuild is failing.

Examples:
  twigpack watch
  twigpack watch --listen 127.0.0.1:9464`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.listen, "listen", "", "status server address (default from config)")
	watchCmd.Flags().BoolVar(&watchFlags.noBuild, "no-initial-build", false, "skip the build on startup")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	// Rebuilds need dependents even when nothing is persisted.
	if a.store == nil {
		a.store = manifest.NewMemoryStore()
	}
	store := a.store
	tel := a.tel

	resolve := func() ([]string, error) { return a.entries(args) }
	builder := a.builder(build.BuilderOptions{})
	printer := cli.NewPrinter(a.out, a.format).Streaming()
	show := func(report *build.Report) error {
		return printer.Print(report, func(w io.Writer) error {
			return printReport(w, a.styles, report)
		})
	}

	if !watchFlags.noBuild {
		entries, err := resolve()
		if err != nil {
			return err
		}
		report, err := builder.Build(ctx, entries)
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		tel.Health().ObserveBuild(report.Err())
		if err := show(report); err != nil {
			return err
		}
	}

	tel.Health().RegisterCheck("manifest", func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	})

	if a.cfg.Manifest.Enabled {
		pruner := retention.NewPruner(store, retention.FromManifestConfig(&a.cfg.Manifest))
		if err := pruner.Start(ctx); err != nil {
			return cli.NewCommandError("watch", fmt.Errorf("failed to start pruning: %w", err))
		}
		defer pruner.Stop()
		if next := pruner.NextPruning(); next != nil {
			a.logger.Debug("manifest pruning scheduled", "next", next)
		}
	}

	listen := watchFlags.listen
	if listen == "" {
		listen = a.cfg.Watch.ListenAddress
	}
	if listen != "" {
		srv := server.NewServer(&server.Config{ListenAddress: listen}, tel.Handler(versionInfo()), a.logger)
		if err := srv.Listen(); err != nil {
			return cli.NewCommandError("watch", err)
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				a.logger.Error("status server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		printer.Textf("✓ Status server listening on http://%s\n", srv.Addr())
	}

	w, err := watch.New(watch.FromWatchConfig(&a.cfg.Watch, a.watchPaths()), a.logger, watch.WithRecorder(tel.Metrics()))
	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	defer w.Stop()

	rebuilder := watch.NewRebuilder(builder, store,
		watch.WithEntries(resolve),
		watch.WithRebuildRecorder(tel.Metrics()),
		watch.WithObserver(tel.Health()),
		watch.WithTracer(tel.Tracer()),
		watch.WithLogger(a.logger),
	)

	printer.Textf("%s\n", a.styles.Bold("Watching for changes. Press Ctrl+C to stop"))
	err = w.Watch(ctx, func(ctx context.Context, changes []watch.Change) error {
		report, err := rebuilder.Rebuild(ctx, changes)
		if err != nil {
			a.logger.ErrorContext(ctx, "rebuild failed", "error", err)
			return nil
		}
		if len(report.Results) > 0 {
			return show(report)
		}
		return nil
	})
	if err != nil {
		return cli.NewCommandError("watch", err)
	}

	printer.Textf("✓ Watcher stopped\n")
	return nil
}

// watchPaths returns the absolute search paths of every namespace.
func (a *app) watchPaths() []string {
	env := a.cfg.Environment
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(env.RootPath, p)
		}
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, p := range env.TemplatePaths {
		add(p)
	}
	namespaces := make([]string, 0, len(env.Namespaces))
	for ns := range env.Namespaces {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		for _, p := range env.Namespaces[ns] {
			add(p)
		}
	}
	return paths
}
