package tracing_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ananya-mh/searchload/internal/config"
	"github.com/ananya-mh/searchload/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() || p.Exporting() {
		t.Error("disabled provider should neither propagate nor export")
	}
	_, span := p.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("no-op tracer should produce invalid span contexts")
	}
	span.End()
}

func TestInitPropagateWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{Propagate: true, SampleRate: 1})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true")
	}
	if p.Exporting() {
		t.Error("Exporting() = true without an endpoint")
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	ctx, span := tracing.StartSearchSpan(context.Background(), p.Tracer(), "/products/search", "Alpha")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)
	got := headers.Get("Traceparent")
	if len(got) < 55 {
		t.Errorf("traceparent header = %q, want a W3C trace context", got)
	}
	if got != "" && !strings.HasSuffix(got, "-01") {
		t.Errorf("traceparent %q should be sampled", got)
	}
}

func TestInitWithEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		endpoint string
	}{
		{"grpc", "grpc", "localhost:4317"},
		{"default protocol", "", "localhost:4317"},
		{"http", "http", "localhost:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:    tt.endpoint,
				Protocol:    tt.protocol,
				ServiceName: "test-service",
				SampleRate:  0.5,
				Insecure:    true,
			})
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

			if !p.Exporting() {
				t.Error("Exporting() = false with endpoint")
			}
			if p.ShouldPropagate() {
				t.Error("ShouldPropagate() = true, propagation was not requested")
			}
		})
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{"unsupported protocol", config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift", Insecure: true, SampleRate: 1}},
		{"negative sample rate", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.5}},
		{"sample rate above one", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tracing.Init(context.Background(), tt.cfg); err == nil {
				t.Fatal("Init() should return an error")
			}
		})
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() || p.Exporting() {
		t.Error("nil provider should be inert")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
}

func TestStartSearchSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracing.StartSearchSpan(context.Background(), tracer, "/products/search", "Gamma")
	tracing.EndSpan(span, nil, tracing.AttrStatus.Int(200))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "GET /products/search" {
		t.Errorf("span name = %q", s.Name)
	}
	if s.SpanKind != trace.SpanKindClient {
		t.Errorf("span kind = %v", s.SpanKind)
	}
	attrs := map[string]string{}
	for _, kv := range s.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["searchload.query"] != "Gamma" {
		t.Errorf("query attribute = %q", attrs["searchload.query"])
	}
	if attrs["searchload.name"] != "/products/search" {
		t.Errorf("name attribute = %q", attrs["searchload.name"])
	}
	if attrs["http.response.status_code"] != "200" {
		t.Errorf("status attribute = %q", attrs["http.response.status_code"])
	}
	if s.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status.Code)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, context.DeadlineExceeded)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("error event not recorded")
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if len(got) < 55 {
		t.Errorf("traceparent header = %q", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	if got := headers.Get("Traceparent"); got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}
