// Tracing wraps the engine's hot-path operations (ticks, scans, store
// writes) in OpenTelemetry spans.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/lanwatch/lanwatch/internal/core/engine"

// NewTracerProvider builds a minimal in-process TracerProvider. It has
// no exporter wired by default; callers that want spans shipped
// somewhere register a sdktrace.WithBatcher(exporter) option at the
// call site.
func NewTracerProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(opts...)
}

// StartSpan starts a span named op under the global tracer.
func StartSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op)
}
