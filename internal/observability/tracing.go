package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this library to the tracer provider.
const instrumentationName = "github.com/strandhttp/strand"

// Tracer returns the tracer for this library. The global tracer provider
// decides whether spans are recorded; with no provider installed this is
// a cheap no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartRequestSpan starts a span for a dispatched request.
func StartRequestSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		),
	)
}

// EndRequestSpan records the final status on the span and ends it.
func EndRequestSpan(span trace.Span, status string, aborted bool) {
	span.SetAttributes(attribute.String("http.response.status", status))
	if aborted {
		span.SetStatus(codes.Error, "connection aborted")
	}
	span.End()
}
