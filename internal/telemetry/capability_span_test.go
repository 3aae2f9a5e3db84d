package telemetry

import (
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/antigravity-dev/ccos/internal/values"
)

type fakeExecutor struct {
	result values.Value
	err    error
}

func (f *fakeExecutor) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	return f.result, f.err
}

func newTestProvider(t *testing.T, recorder *tracetest.SpanRecorder) *Provider {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &Provider{traceProvider: tp, tracer: tp.Tracer(instrumentationName)}
}

func TestTracedExecutorRecordsSuccessSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := newTestProvider(t, recorder)
	traced := NewTracedExecutor(&fakeExecutor{result: values.Str("ok")}, provider)

	if _, err := traced.ExecuteCapability("echo", []values.Value{values.Str("hi")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one recorded span, got %d", len(spans))
	}
	if spans[0].Name() != "capability.execute" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
}

func TestTracedExecutorRecordsErrorSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := newTestProvider(t, recorder)
	traced := NewTracedExecutor(&fakeExecutor{err: errors.New("capability denied")}, provider)

	if _, err := traced.ExecuteCapability("echo", nil); err == nil {
		t.Fatalf("expected the wrapped error to propagate")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one recorded span, got %d", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Fatalf("expected RecordError to attach an exception event")
	}
}
