package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/cli"
)

// defaultConfigFile is loaded when --config is not given and the file
// exists in the working directory.
const defaultConfigFile = "twigpack.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool

	globalFlags struct {
		mode       string
		logLevel   string
		format     string
		color      string
		noManifest bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "twigpack",
	Short: "twigpack - Twig template compiler for JavaScript bundles",
	Long: `twigpack compiles Twig templates into JavaScript modules.

In precompile mode each entry becomes a module that registers the compiled
template, and every template it includes, extends, embeds or imports, with
the runtime environment module. Template names are rewritten into stable
keys: normalized paths in development, SHA-256 digests in production.

When a render context is configured, entries are rendered at build time
instead and emitted as string modules.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(cli.SetupSignalHandler()); err != nil {
		styles := cli.NewStyles(os.Stderr, cli.ColorMode(globalFlags.color))
		fmt.Fprintln(os.Stderr, styles.Error("Error: %v", err))
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./"+defaultConfigFile+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.mode, "mode", "", "override key mode (development, production)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.format, "format", "text", "output format: text, json")
	rootCmd.PersistentFlags().StringVar(&globalFlags.color, "color", "auto", "colorize output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.noManifest, "no-manifest", false, "do not read or write the dependency manifest")
}
