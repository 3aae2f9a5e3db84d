package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/antigravity-dev/ccos/internal/values"
)

// CapabilityExecutor is the shape *host.Host and internal/sandbox's
// CapabilityExecutor both satisfy; TracedExecutor wraps either without
// either package importing telemetry.
type CapabilityExecutor interface {
	ExecuteCapability(id string, args []values.Value) (values.Value, error)
}

// TracedExecutor decorates a CapabilityExecutor with one span per call,
// named "capability.execute" with the capability ID as an attribute,
// recording duration and success/failure.
// This is the bridge between a capability call (wherever it originates:
// orchestrator plan step, sandboxed CCOS_CALL::) and the trace pipeline.
type TracedExecutor struct {
	inner    CapabilityExecutor
	provider *Provider
}

func NewTracedExecutor(inner CapabilityExecutor, provider *Provider) *TracedExecutor {
	return &TracedExecutor{inner: inner, provider: provider}
}

func (t *TracedExecutor) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	_, span := t.provider.Tracer().Start(context.Background(), "capability.execute",
		trace.WithAttributes(
			attribute.String("capability.id", id),
			attribute.Int("capability.arg_count", len(args)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.inner.ExecuteCapability(id, args)
	span.SetAttributes(attribute.Int64("capability.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, err
}
