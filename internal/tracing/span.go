package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrName   = attribute.Key("searchload.name")
	AttrQuery  = attribute.Key("searchload.query")
	AttrStatus = attribute.Key("http.response.status_code")
)

// StartSearchSpan starts a client span for one search request. The span is
// named after the aggregation label so every query lands in one operation.
func StartSearchSpan(ctx context.Context, tracer trace.Tracer, name, term string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GET "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			AttrName.String(name),
			AttrQuery.String(term),
		),
	)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders writes W3C trace context from ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
