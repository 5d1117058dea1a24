// Package tracing provides OpenTelemetry tracing for an import run: a span
// per record with the API calls it made as children. It is off unless enabled
// through configuration, in which case spans go to an OTLP endpoint or,
// without one, to stdout.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "so4t-import"
)

// Config holds tracing configuration for one import run.
type Config struct {
	ServiceVersion string
	Enabled        bool
	OTLPEndpoint   string // If set, uses OTLP exporter; otherwise stdout
	SampleRate     float64

	// The run the spans belong to. Empty values are left off the resource.
	RunID string
	Site  string
	Mode  string
}

// Setup installs a tracer provider for the run and returns its shutdown
// function, which flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), runResource(cfg))
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// runResource describes the import run every span belongs to.
func runResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(TracerName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.RunID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(cfg.RunID))
	}
	if cfg.Site != "" {
		attrs = append(attrs, attribute.String("so4t.site", cfg.Site))
	}
	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("so4t.import.mode", cfg.Mode))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

// sampler keeps every span at rate 1 and none at rate 0. Child spans follow
// their parent's decision.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the named tracer
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a new span with the given name and returns the context and span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AddCallAttributes tags a span with the API generation and HTTP call.
func AddCallAttributes(span trace.Span, api, method, path string) {
	span.SetAttributes(
		attribute.String("soapi.version", api),
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
}

// AddRecordAttributes tags a span with the import record being processed.
func AddRecordAttributes(span trace.Span, kind string, index int, title string) {
	span.SetAttributes(
		attribute.String("import.kind", kind),
		attribute.Int("import.row", index),
		attribute.String("import.title", title),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}
