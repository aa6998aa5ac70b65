package build

import (
	"fmt"
	"log/slog"
	"sort"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/twig"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// EnvironmentFactory creates the template environment of one compilation.
// Every call must return a new environment: direct render replaces its
// loader and subscribes to its notifications.
type EnvironmentFactory func() (*twig.Environment, error)

// NewEnvironmentFactory returns a factory building filesystem backed
// environments from cfg.
func NewEnvironmentFactory(cfg *config.EnvironmentConfig, logger *slog.Logger) EnvironmentFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func() (*twig.Environment, error) {
		fs, err := loader.NewFilesystemLoader(cfg.RootPath, cfg.TemplatePaths...)
		if err != nil {
			return nil, fmt.Errorf("failed to create template loader: %w", err)
		}

		namespaces := make([]string, 0, len(cfg.Namespaces))
		for ns := range cfg.Namespaces {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)
		for _, ns := range namespaces {
			for _, p := range cfg.Namespaces[ns] {
				if err := fs.AddPath(p, ns); err != nil {
					return nil, fmt.Errorf("namespace %q: %w", ns, err)
				}
			}
		}

		opts := []twig.Option{
			twig.WithAutoescape(cfg.AutoescapeStrategy()),
			twig.WithStrictVariables(cfg.StrictVariables),
			twig.WithGlobals(cfg.Globals),
			twig.WithLogger(logger.With("component", "twig.environment")),
		}
		if cfg.MaxNestingLevel > 0 {
			opts = append(opts, twig.WithMaxNestingLevel(cfg.MaxNestingLevel))
		}
		return twig.NewEnvironment(fs, opts...), nil
	}
}

// StaticEnvironment returns a factory creating in-memory environments over
// templates. Each environment gets its own copy of the map.
func StaticEnvironment(templates map[string]string, opts ...twig.Option) EnvironmentFactory {
	return func() (*twig.Environment, error) {
		return twig.NewEnvironment(loader.NewArrayLoader(templates), opts...), nil
	}
}
