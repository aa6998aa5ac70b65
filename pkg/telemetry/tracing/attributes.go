package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanCompile  = "twigpack.compile"
	SpanParse    = "twigpack.parse"
	SpanDiscover = "twigpack.discover"
	SpanCodegen  = "twigpack.codegen"
	SpanRender   = "twigpack.render"
	SpanRebuild  = "twigpack.rebuild"
)

// Attribute keys use the "twigpack.*" namespace.
const (
	AttrCompilationID = "twigpack.compilation_id"
	AttrResource      = "twigpack.resource"
	AttrMode          = "twigpack.mode"
	AttrKeyMode       = "twigpack.key_mode"
	AttrKey           = "twigpack.key"
	AttrDependencies  = "twigpack.dependencies"
	AttrReferences    = "twigpack.references"
	AttrCodeBytes     = "twigpack.code_bytes"
	AttrPhase         = "twigpack.phase"
	AttrEntries       = "twigpack.entries"
)

// CompileAttributes returns the start attributes of a compilation span.
func CompileAttributes(compilationID, resource, mode, keyMode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCompilationID, compilationID),
		attribute.String(AttrResource, resource),
		attribute.String(AttrMode, mode),
		attribute.String(AttrKeyMode, keyMode),
	}
}

// SetResultAttributes records the outcome of a successful compilation.
func SetResultAttributes(span trace.Span, key string, dependencies, codeBytes int) {
	span.SetAttributes(
		attribute.String(AttrKey, key),
		attribute.Int(AttrDependencies, dependencies),
		attribute.Int(AttrCodeBytes, codeBytes),
	)
}

// SetPhase records the phase a compilation failed in.
func SetPhase(span trace.Span, phase string) {
	span.SetAttributes(attribute.String(AttrPhase, phase))
}
