// Package logging provides structured logging for twigpack.
//
// The Logger wraps log/slog with:
//   - JSON, text and console output formats
//   - compilation fields (compilation_id, resource, mode) carried on the context
//   - optional home directory redaction of logged paths
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//
//	ctx = logging.WithCompilationID(ctx, id)
//	ctx = logging.WithResource(ctx, "templates/page.twig")
//	logger.InfoContext(ctx, "compiled", "dependencies", 3)
//
// Library packages take a *slog.Logger; pass them logger.Slog().
package logging
