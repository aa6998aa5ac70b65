package tracing

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Environment variables carrying W3C trace context into the CLI, so a
// build started by a traced CI job or bundler becomes a child of its span.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
	EnvBaggage     = "BAGGAGE"
)

// EnvCarrier adapts environment-style variables to a TextMapCarrier.
// Keys are the upper-cased header names.
type EnvCarrier map[string]string

// Get returns the value for key.
func (c EnvCarrier) Get(key string) string {
	return c[strings.ToUpper(key)]
}

// Set stores value under key.
func (c EnvCarrier) Set(key, value string) {
	c[strings.ToUpper(key)] = value
}

// Keys lists the carrier keys.
func (c EnvCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// EnvCarrierFromOS reads the trace context variables of the process.
func EnvCarrierFromOS() EnvCarrier {
	c := EnvCarrier{}
	for _, key := range []string{EnvTraceParent, EnvTraceState, EnvBaggage} {
		if v := os.Getenv(key); v != "" {
			c[key] = v
		}
	}
	return c
}

// Propagator returns the global text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// ExtractFromEnv returns ctx carrying the remote span context found in the
// process environment, or ctx unchanged when none is set.
func ExtractFromEnv(ctx context.Context) context.Context {
	return Extract(ctx, EnvCarrierFromOS())
}

// Extract returns ctx carrying the span context found in carrier.
func Extract(ctx context.Context, carrier EnvCarrier) context.Context {
	return Propagator().Extract(ctx, carrier)
}

// Inject writes the span context of ctx into carrier, for child processes.
func Inject(ctx context.Context, carrier EnvCarrier) {
	Propagator().Inject(ctx, carrier)
}
