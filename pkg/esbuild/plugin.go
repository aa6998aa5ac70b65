package esbuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"mercator-hq/twigpack/pkg/build"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
)

// PluginName is the name the plugin registers with esbuild.
const PluginName = "twigpack"

// DefaultFilter matches the files loaded by the plugin.
const DefaultFilter = `\.(twig|html\.twig)$`

type options struct {
	filter         string
	ctx            context.Context
	logger         *slog.Logger
	warnUnresolved bool
}

// Option configures the plugin.
type Option func(*options)

// WithFilter replaces DefaultFilter. esbuild filters use Go regexp syntax.
func WithFilter(filter string) Option {
	return func(o *options) {
		o.filter = filter
	}
}

// WithContext sets the context compilations run in. esbuild callbacks carry
// no context of their own.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithUnresolvedWarnings reports template names the loader did not know as
// esbuild warnings.
func WithUnresolvedWarnings(enabled bool) Option {
	return func(o *options) {
		o.warnUnresolved = enabled
	}
}

// Plugin returns an esbuild plugin compiling templates with compiler.
func Plugin(compiler *build.Compiler, opts ...Option) api.Plugin {
	o := &options{
		filter: DefaultFilter,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With("component", "esbuild")

	return api.Plugin{
		Name: PluginName,
		Setup: func(pb api.PluginBuild) {
			pb.OnLoad(api.OnLoadOptions{Filter: o.filter}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				return load(o, logger, compiler, args), nil
			})
		},
	}
}

func load(o *options, logger *slog.Logger, compiler *build.Compiler, args api.OnLoadArgs) api.OnLoadResult {
	result := api.OnLoadResult{
		PluginName: PluginName,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     api.LoaderJS,
		WatchFiles: []string{args.Path},
	}

	source, err := os.ReadFile(args.Path)
	if err != nil {
		result.Errors = []api.Message{{Text: fmt.Sprintf("failed to read template: %v", err)}}
		return result
	}

	host := build.NewRecordingHost(args.Path)
	compiled, err := compiler.Compile(o.ctx, host, string(source))

	// Dependencies registered before a failure still matter: fixing an
	// included template must retrigger the build.
	result.WatchFiles = watchFiles(args.Path, host.Dependencies())

	if err != nil {
		logger.Debug("template load failed", "path", args.Path, "error", err)
		result.Errors = []api.Message{message(args.Path, err)}
		return result
	}

	contents := compiled.Code
	result.Contents = &contents

	if o.warnUnresolved {
		for _, u := range compiled.Unresolved {
			result.Warnings = append(result.Warnings, api.Message{
				Text: fmt.Sprintf("template %q could not be resolved and is left unchanged", u.Name),
				Location: &api.Location{
					File: args.Path,
					Line: u.Line,
				},
			})
		}
	}
	return result
}

// watchFiles keeps the dependencies that are files on disk. The environment
// module is a module specifier, not a file.
func watchFiles(entry string, deps []string) []string {
	files := []string{entry}
	for _, dep := range deps {
		path := filepath.FromSlash(dep)
		if !filepath.IsAbs(path) || path == entry {
			continue
		}
		files = append(files, path)
	}
	return files
}

// message converts a compilation error into an esbuild message, keeping the
// template location of parse and render failures.
func message(path string, err error) api.Message {
	msg := api.Message{Text: err.Error()}

	var te *twigerrors.Error
	if !errors.As(err, &te) {
		return msg
	}

	msg.Text = te.Message
	if te.Location.IsValid() {
		msg.Location = &api.Location{
			File:   path,
			Line:   te.Location.Line,
			Column: max(te.Location.Column-1, 0),
		}
	}
	if te.Suggestion != "" {
		msg.Notes = append(msg.Notes, api.Note{Text: te.Suggestion})
	}
	if te.Context != "" {
		msg.Notes = append(msg.Notes, api.Note{Text: strings.TrimRight(te.Context, "\n")})
	}

	var ce *build.CompileError
	if errors.As(err, &ce) {
		msg.Detail = ce.Phase
	}
	return msg
}
