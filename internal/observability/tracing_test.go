package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs an in-memory span recorder as the global tracer
// provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func findAttr(t *testing.T, span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	t.Helper()
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	t.Fatalf("attribute %s not found on span %s", key, span.Name())
	return attribute.Value{}
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "strata" {
		t.Fatalf("expected service name 'strata', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "" {
		t.Fatalf("expected tracing disabled by default, got endpoint %s", cfg.OTLPEndpoint)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestTracerProvider_ZeroValueShutdown(t *testing.T) {
	var tp TracerProvider
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil error from zero-value shutdown, got %v", err)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-0.5, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}

	desc := samplerFor(0.25).Description()
	if !strings.Contains(desc, "ParentBased") || !strings.Contains(desc, "TraceIDRatioBased") {
		t.Errorf("expected parent-based ratio sampler for 0.25, got %s", desc)
	}
}

func TestSpanNamesAndKinds(t *testing.T) {
	sr := recordSpans(t)
	ctx := context.Background()

	starts := []struct {
		op    string
		kind  trace.SpanKind
		start func(context.Context) (context.Context, trace.Span)
	}{
		{OpScan, trace.SpanKindInternal, func(ctx context.Context) (context.Context, trace.Span) {
			return StartScanSpan(ctx, "/src")
		}},
		{OpAnalyze, trace.SpanKindInternal, func(ctx context.Context) (context.Context, trace.Span) {
			return StartAnalyzeSpan(ctx, 10)
		}},
		{OpGate, trace.SpanKindInternal, func(ctx context.Context) (context.Context, trace.Span) {
			return StartGateSpan(ctx, 3)
		}},
		{OpGraphPush, trace.SpanKindClient, func(ctx context.Context) (context.Context, trace.Span) {
			return StartGraphPushSpan(ctx, 100)
		}},
		{OpVectorIndex, trace.SpanKindClient, func(ctx context.Context) (context.Context, trace.Span) {
			return StartVectorIndexSpan(ctx, 100)
		}},
	}

	for _, tt := range starts {
		_, span := tt.start(ctx)
		span.End()
	}

	ended := sr.Ended()
	if len(ended) != len(starts) {
		t.Fatalf("expected %d spans, got %d", len(starts), len(ended))
	}
	for i, tt := range starts {
		span := ended[i]
		if span.Name() != tt.op {
			t.Errorf("span %d: expected name %s, got %s", i, tt.op, span.Name())
		}
		if span.SpanKind() != tt.kind {
			t.Errorf("span %s: expected kind %s, got %s", tt.op, tt.kind, span.SpanKind())
		}
		if got := findAttr(t, span, opAttrKey).AsString(); got != tt.op {
			t.Errorf("span %s: expected operation attribute %s, got %s", tt.op, tt.op, got)
		}
	}
}

func TestScanSpanAttributes(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartScanSpan(context.Background(), "/src")
	RecordScanResult(span, 42)
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if got := findAttr(t, ended[0], "scan.root").AsString(); got != "/src" {
		t.Errorf("expected root /src, got %s", got)
	}
	if got := findAttr(t, ended[0], "scan.file_count").AsInt64(); got != 42 {
		t.Errorf("expected 42 files, got %d", got)
	}
}

func TestRecordAnalyzeResult(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartAnalyzeSpan(context.Background(), 42)
	RecordAnalyzeResult(span, 42, 1, 2, 3)
	span.End()

	span0 := sr.Ended()[0]
	counts := map[attribute.Key]int64{
		"analyze.module_count":    42,
		"analyze.cycle_count":     1,
		"analyze.coupling_count":  2,
		"analyze.violation_count": 3,
	}
	for key, want := range counts {
		if got := findAttr(t, span0, key).AsInt64(); got != want {
			t.Errorf("expected %s=%d, got %d", key, want, got)
		}
	}
}

func TestRecordGateResult_Pass(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGateSpan(context.Background(), 3)
	RecordGateResult(span, true, 0)
	span.End()

	span0 := sr.Ended()[0]
	if !findAttr(t, span0, "gate.passed").AsBool() {
		t.Error("expected gate.passed=true")
	}
	if span0.Status().Code != codes.Unset {
		t.Errorf("expected unset status on pass, got %v", span0.Status().Code)
	}
}

func TestRecordGateResult_FailMarksSpanErrored(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGateSpan(context.Background(), 3)
	RecordGateResult(span, false, 2)
	span.End()

	span0 := sr.Ended()[0]
	if span0.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", span0.Status().Code)
	}
	if span0.Status().Description != "2 gate failures" {
		t.Errorf("unexpected status description: %s", span0.Status().Description)
	}
}

func TestRecordGraphPushResult(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartGraphPushSpan(context.Background(), 100)
	RecordGraphPushResult(span, 100, 250)
	span.End()

	span0 := sr.Ended()[0]
	if got := findAttr(t, span0, "graph.node_count").AsInt64(); got != 100 {
		t.Errorf("expected 100 nodes, got %d", got)
	}
	if got := findAttr(t, span0, "graph.edge_count").AsInt64(); got != 250 {
		t.Errorf("expected 250 edges, got %d", got)
	}
}

func TestRecordError(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartScanSpan(context.Background(), "/src")
	RecordError(span, nil)
	RecordError(span, errors.New("walk failed"))
	span.End()

	span0 := sr.Ended()[0]
	if span0.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", span0.Status().Code)
	}
	if span0.Status().Description != "walk failed" {
		t.Errorf("unexpected status description: %s", span0.Status().Description)
	}

	// A nil error must not add an exception event.
	events := span0.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "exception" {
		t.Errorf("expected exception event, got %s", events[0].Name)
	}
}

func TestNestedSpansShareTrace(t *testing.T) {
	sr := recordSpans(t)
	ctx := context.Background()

	ctx, parent := StartScanSpan(ctx, "/src")
	_, child := StartAnalyzeSpan(ctx, 10)
	child.End()
	parent.End()

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	childRO, parentRO := ended[0], ended[1]
	if childRO.SpanContext().TraceID() != parentRO.SpanContext().TraceID() {
		t.Error("expected child and parent to share a trace")
	}
	if childRO.Parent().SpanID() != parentRO.SpanContext().SpanID() {
		t.Error("expected analyze span to be a child of the scan span")
	}
}
