package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/antigravity-dev/ccos/internal/causalchain"
)

// ChainSnapshotter is the slice of *causalchain.CausalChain this bridge
// needs: the running per-capability counters, read once per collection.
type ChainSnapshotter interface {
	CapabilityMetricsSnapshot() map[string]causalchain.CapabilityMetrics
}

// MetricsBridge registers observable gauges against the chain's
// per-capability table, read on every OTel collection tick rather than
// pushed eagerly, so the exported numbers always reflect the chain's
// current totals.
type MetricsBridge struct {
	chain ChainSnapshotter

	calls    metric.Int64ObservableGauge
	failures metric.Int64ObservableGauge
	costUSD  metric.Float64ObservableGauge
}

// RegisterMetricsBridge wires chain's running totals into meter (normally
// provider.Meter(), passed directly so tests can register against a bare
// SDK meter with a manual reader instead of a live OTLP pipeline).
func RegisterMetricsBridge(meter metric.Meter, chain ChainSnapshotter) (*MetricsBridge, error) {
	b := &MetricsBridge{chain: chain}

	var err error
	b.calls, err = meter.Int64ObservableGauge("ccos.capability.calls",
		metric.WithDescription("total calls recorded per capability"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: register calls gauge: %w", err)
	}
	b.failures, err = meter.Int64ObservableGauge("ccos.capability.failures",
		metric.WithDescription("total failed calls recorded per capability"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: register failures gauge: %w", err)
	}
	b.costUSD, err = meter.Float64ObservableGauge("ccos.capability.cost_usd",
		metric.WithDescription("cumulative cost in USD recorded per capability"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: register cost gauge: %w", err)
	}

	_, err = meter.RegisterCallback(b.observe, b.calls, b.failures, b.costUSD)
	if err != nil {
		return nil, fmt.Errorf("telemetry: register callback: %w", err)
	}
	return b, nil
}

func (b *MetricsBridge) observe(ctx context.Context, o metric.Observer) error {
	for id, cm := range b.chain.CapabilityMetricsSnapshot() {
		attrs := attribute.NewSet(attribute.String("capability.id", id))
		o.ObserveInt64(b.calls, cm.Calls, metric.WithAttributeSet(attrs))
		o.ObserveInt64(b.failures, cm.Failures, metric.WithAttributeSet(attrs))
		o.ObserveFloat64(b.costUSD, cm.TotalCostUSD, metric.WithAttributeSet(attrs))
	}
	return nil
}
