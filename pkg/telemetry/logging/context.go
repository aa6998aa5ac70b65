package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// CompilationIDKey is the context key for compilation IDs.
	CompilationIDKey contextKey = "compilation_id"

	// ResourceKey is the context key for the entry being compiled.
	ResourceKey contextKey = "resource"

	// ModeKey is the context key for the compilation mode.
	ModeKey contextKey = "mode"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// WithCompilationID adds a compilation ID to the context.
func WithCompilationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CompilationIDKey, id)
}

// GetCompilationID retrieves the compilation ID from the context.
func GetCompilationID(ctx context.Context) string {
	if id, ok := ctx.Value(CompilationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithResource adds the entry resource path to the context.
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, ResourceKey, resource)
}

// GetResource retrieves the entry resource path from the context.
func GetResource(ctx context.Context) string {
	if resource, ok := ctx.Value(ResourceKey).(string); ok {
		return resource
	}
	return ""
}

// WithMode adds the compilation mode to the context.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ModeKey, mode)
}

// GetMode retrieves the compilation mode from the context.
func GetMode(ctx context.Context) string {
	if mode, ok := ctx.Value(ModeKey).(string); ok {
		return mode
	}
	return ""
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// extractContextFields returns the key-value pairs of the compilation
// fields set on ctx, in a fixed order.
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var fields []any
	if id := GetCompilationID(ctx); id != "" {
		fields = append(fields, string(CompilationIDKey), id)
	}
	if resource := GetResource(ctx); resource != "" {
		fields = append(fields, string(ResourceKey), resource)
	}
	if mode := GetMode(ctx); mode != "" {
		fields = append(fields, string(ModeKey), mode)
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, string(TraceIDKey), traceID)
	}
	return fields
}
