package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
	"mercator-hq/twigpack/pkg/keys"
)

var depsFlags struct {
	reverse bool
}

var depsCmd = &cobra.Command{
	Use:   "deps <template>",
	Short: "List the templates a template depends on",
	Long: `Analyze a template and list the files registered as its dependencies,
the template names that were rewritten into keys and the names left
unresolved. Nothing is generated or rendered.

With --reverse the manifest is queried instead: the entries whose last build
depended on the template are listed.

Examples:
  # Dependencies of an entry
  twigpack deps templates/page.twig

  # Entries to rebuild when a partial changes
  twigpack deps --reverse templates/partials/header.twig`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)

	depsCmd.Flags().BoolVarP(&depsFlags.reverse, "reverse", "r", false, "list the entries depending on the template")
}

func runDeps(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if depsFlags.reverse {
		return reverseDeps(a, args[0])
	}

	path, source, err := readTemplate(args[0])
	if err != nil {
		return cli.NewCommandError("deps", err)
	}

	result, err := a.compiler.Discover(a.ctx, build.NewRecordingHost(path), source)
	if err != nil {
		return cli.NewCommandError("deps", err)
	}

	return a.emit(result, func(w io.Writer) error {
		fmt.Fprintln(w, a.styles.Bold("%s", result.Entry))
		fmt.Fprintf(w, "  key: %s\n", result.Key)
		fmt.Fprintln(w, "  dependencies:")
		for _, dep := range result.Dependencies {
			fmt.Fprintf(w, "    %s\n", dep)
		}
		if len(result.References) > 0 {
			fmt.Fprintln(w, "  references:")
			for _, ref := range result.References {
				fmt.Fprintf(w, "    %s %s %s\n", ref.Name, a.styles.Faint("->"), ref.Key)
			}
		}
		for _, u := range result.Unresolved {
			fmt.Fprintln(w, a.styles.Warning("  unresolved: %s (line %d)", u.Name, u.Line))
		}
		return nil
	})
}

func reverseDeps(a *app, arg string) error {
	if err := a.requireStore("deps"); err != nil {
		return err
	}
	path, err := absPath(arg)
	if err != nil {
		return cli.NewCommandError("deps", err)
	}

	entries, err := a.store.Dependents(a.ctx, keys.Normalize(path))
	if err != nil {
		return cli.NewCommandError("deps", err)
	}

	dependents := make([]string, 0, len(entries))
	for _, e := range entries {
		dependents = append(dependents, e.ResourcePath)
	}
	return a.emit(dependents, func(w io.Writer) error {
		if len(dependents) == 0 {
			fmt.Fprintln(w, a.styles.Faint("no recorded entry depends on %s", arg))
			return nil
		}
		for _, d := range dependents {
			fmt.Fprintln(w, d)
		}
		return nil
	})
}
