// Package tracing provides OpenTelemetry tracing for twigpack compilations.
//
// Each compilation is a "twigpack.compile" span with child spans for the
// parse, discover, codegen and render phases. Spans are exported over
// OTLP/gRPC; when tracing is disabled a noop tracer keeps instrumentation
// free.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(ctx)
//
//	ctx = tracing.ExtractFromEnv(ctx) // join a parent trace from TRACEPARENT
//	ctx, span := tracer.Start(ctx, tracing.SpanCompile,
//	    trace.WithAttributes(tracing.CompileAttributes(id, entry, mode, keyMode)...))
//	defer span.End()
package tracing
