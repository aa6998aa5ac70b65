package logging

import (
	"context"
	"reflect"
	"testing"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if fields := extractContextFields(ctx); len(fields) != 0 {
		t.Errorf("expected no fields, got %v", fields)
	}

	ctx = WithTraceID(ctx, "t-1")
	ctx = WithMode(ctx, "direct-render")
	ctx = WithResource(ctx, "page.twig")
	ctx = WithCompilationID(ctx, "c-1")

	want := []any{
		"compilation_id", "c-1",
		"resource", "page.twig",
		"mode", "direct-render",
		"trace_id", "t-1",
	}
	if got := extractContextFields(ctx); !reflect.DeepEqual(got, want) {
		t.Errorf("extractContextFields() = %v, want %v", got, want)
	}

	if GetCompilationID(ctx) != "c-1" || GetResource(ctx) != "page.twig" || GetMode(ctx) != "direct-render" || GetTraceID(ctx) != "t-1" {
		t.Error("getters returned unexpected values")
	}
}
