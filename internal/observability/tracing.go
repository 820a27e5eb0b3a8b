// Package observability provides OpenTelemetry tracing, Prometheus-style
// metrics, and audit logging for Strata.
package observability

import (
	"context"
	"fmt"

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

// TracerName is the instrumentation scope for all Strata spans.
const TracerName = "github.com/efebarandurmaz/strata"

// TracingConfig configures the OTLP trace pipeline.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "strata")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "strata",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider owns the exporter pipeline behind the global tracer.
// The zero value is a no-op whose Shutdown returns nil.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing wires the OTLP exporter and installs it as the global
// tracer provider. Without an endpoint it returns a provider backed by
// whatever global tracer is already installed, normally a no-op.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := buildResource(cfg)
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

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func buildResource(cfg *TracingConfig) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

// samplerFor clamps rate into [0, 1]. Mid-range rates defer to the
// parent span's decision so a trace is never sampled piecemeal.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span names for the operations Strata traces. The same value rides on
// each span as the strata.operation attribute.
const (
	OpScan        = "scan"
	OpAnalyze     = "analyze"
	OpGate        = "gate"
	OpGraphPush   = "graph.push"
	OpVectorIndex = "vector.index"
)

const opAttrKey = attribute.Key("strata.operation")

// startSpan opens a span named op on the global tracer. The exported
// helpers below wrap it so call sites stay one line per operation.
func startSpan(ctx context.Context, op string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(opAttrKey.String(op)),
		trace.WithAttributes(attrs...),
	)
}

// StartScanSpan starts a span covering a source tree walk.
func StartScanSpan(ctx context.Context, root string) (context.Context, trace.Span) {
	return startSpan(ctx, OpScan, trace.SpanKindInternal,
		attribute.String("scan.root", root))
}

// RecordScanResult records scan results on a span.
func RecordScanResult(span trace.Span, fileCount int) {
	span.SetAttributes(attribute.Int("scan.file_count", fileCount))
}

// StartAnalyzeSpan starts a span for a dependency analysis pass.
func StartAnalyzeSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return startSpan(ctx, OpAnalyze, trace.SpanKindInternal,
		attribute.Int("analyze.file_count", fileCount))
}

// RecordAnalyzeResult records analysis findings on a span.
func RecordAnalyzeResult(span trace.Span, moduleCount, cycleCount, couplingCount, violationCount int) {
	span.SetAttributes(
		attribute.Int("analyze.module_count", moduleCount),
		attribute.Int("analyze.cycle_count", cycleCount),
		attribute.Int("analyze.coupling_count", couplingCount),
		attribute.Int("analyze.violation_count", violationCount),
	)
}

// StartGateSpan starts a span for a quality gate run.
func StartGateSpan(ctx context.Context, gateCount int) (context.Context, trace.Span) {
	return startSpan(ctx, OpGate, trace.SpanKindInternal,
		attribute.Int("gate.count", gateCount))
}

// RecordGateResult records the gate outcome. A failed run marks the
// span as errored so trace backends surface it.
func RecordGateResult(span trace.Span, passed bool, failureCount int) {
	span.SetAttributes(
		attribute.Bool("gate.passed", passed),
		attribute.Int("gate.failure_count", failureCount),
	)
	if !passed {
		span.SetStatus(codes.Error, fmt.Sprintf("%d gate failures", failureCount))
	}
}

// StartGraphPushSpan starts a span for pushing modules to the graph store.
func StartGraphPushSpan(ctx context.Context, moduleCount int) (context.Context, trace.Span) {
	return startSpan(ctx, OpGraphPush, trace.SpanKindClient,
		attribute.Int("graph.module_count", moduleCount))
}

// RecordGraphPushResult records graph push results on a span.
func RecordGraphPushResult(span trace.Span, nodeCount, edgeCount int) {
	span.SetAttributes(
		attribute.Int("graph.node_count", nodeCount),
		attribute.Int("graph.edge_count", edgeCount),
	)
}

// StartVectorIndexSpan starts a span for indexing module profiles.
func StartVectorIndexSpan(ctx context.Context, moduleCount int) (context.Context, trace.Span) {
	return startSpan(ctx, OpVectorIndex, trace.SpanKindClient,
		attribute.Int("vector.module_count", moduleCount))
}

// RecordError marks the span as failed. A nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
