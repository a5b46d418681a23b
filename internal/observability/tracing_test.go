package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder swaps in an in-memory exporter for the duration of the
// test so span attributes can be asserted.
func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		provider.Shutdown(context.Background())
	})
	return exporter
}

func attrValue(span tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "docflow" {
		t.Errorf("ServiceName = %q, want docflow", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("OTLPEndpoint = %q, want empty", cfg.OTLPEndpoint)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp == nil {
		t.Fatal("nil provider")
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.5, sdktrace.AlwaysSample().Description()},
		{1.0, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{-0.2, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestStartIngestSpan_Attributes(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartIngestSpan(context.Background(), "doc-42")
	SetIngestMetrics(span, "invoice", 7)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "pipeline.ingest" {
		t.Errorf("Name = %q", got.Name)
	}
	if v, ok := attrValue(got, "docflow.document_id"); !ok || v.AsString() != "doc-42" {
		t.Errorf("document_id attribute = %v", v)
	}
	if v, ok := attrValue(got, "docflow.category"); !ok || v.AsString() != "invoice" {
		t.Errorf("category attribute = %v", v)
	}
	if v, ok := attrValue(got, "docflow.chunk_count"); !ok || v.AsInt64() != 7 {
		t.Errorf("chunk_count attribute = %v", v)
	}
}

func TestStartSearchSpan_Attributes(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartSearchSpan(context.Background(), 10)
	RecordSearchResult(span, 3)
	span.End()

	got := exporter.GetSpans()[0]
	if got.Name != "retrieval.search" {
		t.Errorf("Name = %q", got.Name)
	}
	if v, ok := attrValue(got, "docflow.search.limit"); !ok || v.AsInt64() != 10 {
		t.Errorf("limit attribute = %v", v)
	}
	if v, ok := attrValue(got, "docflow.search.result_count"); !ok || v.AsInt64() != 3 {
		t.Errorf("result_count attribute = %v", v)
	}
}

func TestStartLLMSpan_ModelOmittedWhenEmpty(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartLLMSpan(context.Background(), "ollama", "")
	RecordLLMMetrics(span, 100, 20, 500*time.Millisecond)
	span.End()

	got := exporter.GetSpans()[0]
	if _, ok := attrValue(got, "llm.model"); ok {
		t.Error("llm.model set for empty model")
	}
	if v, ok := attrValue(got, "llm.total_tokens"); !ok || v.AsInt64() != 120 {
		t.Errorf("total_tokens attribute = %v", v)
	}
	if v, ok := attrValue(got, "llm.duration_ms"); !ok || v.AsInt64() != 500 {
		t.Errorf("duration_ms attribute = %v", v)
	}
}

func TestStartLLMSpan_WithModel(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartLLMSpan(context.Background(), "anthropic", "claude-sonnet-4-5")
	span.End()

	got := exporter.GetSpans()[0]
	if v, ok := attrValue(got, "llm.model"); !ok || v.AsString() != "claude-sonnet-4-5" {
		t.Errorf("llm.model attribute = %v", v)
	}
}

func TestRecordError(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartIngestSpan(context.Background(), "doc-1")
	RecordError(span, errors.New("extract failed"))
	span.End()

	got := exporter.GetSpans()[0]
	if got.Status.Code != codes.Error {
		t.Errorf("Status.Code = %v, want Error", got.Status.Code)
	}
	if got.Status.Description != "extract failed" {
		t.Errorf("Status.Description = %q", got.Status.Description)
	}
}

func TestRecordError_NilIsNoop(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartIngestSpan(context.Background(), "doc-1")
	RecordError(span, nil)
	span.End()

	if got := exporter.GetSpans()[0]; got.Status.Code == codes.Error {
		t.Error("nil error marked span failed")
	}
}
