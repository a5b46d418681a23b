// Package observability carries the cross-cutting instrumentation: OTLP
// tracing, a Prometheus-style metrics registry, and the audit trail.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies this module's tracer.
const TracerName = "github.com/lukasmraz/docflow"

// TracingConfig describes where spans go. An empty OTLPEndpoint leaves
// tracing as a no-op; SampleRate is clamped to [0, 1].
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
}

func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "docflow",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider owns the exporter pipeline. Shutdown flushes pending spans.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing wires the OTLP gRPC exporter and installs the provider and
// W3C propagators globally. Without an endpoint it returns a provider whose
// spans are never exported.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kind attribute values, used to filter docflow spans in a backend.
const (
	SpanKindIngest = "ingest"
	SpanKindSearch = "search"
	SpanKindLLM    = "llm"
)

// StartIngestSpan starts a span covering one document's ingestion.
func StartIngestSpan(ctx context.Context, documentID string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "pipeline.ingest",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docflow.document_id", documentID),
			attribute.String("docflow.span.kind", SpanKindIngest),
		),
	)
}

// SetIngestMetrics records the chunking stage outcome on an ingest span.
func SetIngestMetrics(span trace.Span, category string, chunkCount int) {
	span.SetAttributes(
		attribute.String("docflow.category", category),
		attribute.Int("docflow.chunk_count", chunkCount),
	)
}

// StartSearchSpan starts a span for a retrieval query.
func StartSearchSpan(ctx context.Context, limit int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "retrieval.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docflow.span.kind", SpanKindSearch),
			attribute.Int("docflow.search.limit", limit),
		),
	)
}

// RecordSearchResult records the result count on a search span.
func RecordSearchResult(span trace.Span, resultCount int) {
	span.SetAttributes(attribute.Int("docflow.search.result_count", resultCount))
}

// StartLLMSpan starts a client span for a model call. The model attribute
// is omitted when the caller does not know it up front.
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("docflow.span.kind", SpanKindLLM),
		attribute.String("llm.provider", provider),
	}
	if model != "" {
		attrs = append(attrs, attribute.String("llm.model", model))
	}
	return otel.Tracer(TracerName).Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// RecordLLMMetrics records token usage and latency on an LLM span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// RecordError marks a span failed and attaches the error.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
