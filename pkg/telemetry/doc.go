// Package telemetry bundles twigpack's observability: structured logging,
// Prometheus metrics, OpenTelemetry tracing and the health checker of the
// watch status server.
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr)
//	defer tel.Shutdown(ctx)
//
//	tel.Logger().Info("build started", "entries", len(entries))
//	tel.Metrics().RecordCompile(entry, "precompile", "success", d, deps)
//	ctx, span := tel.Tracer().Start(ctx, tracing.SpanCompile)
package telemetry
