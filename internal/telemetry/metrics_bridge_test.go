package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/antigravity-dev/ccos/internal/causalchain"
)

type fakeSnapshotter map[string]causalchain.CapabilityMetrics

func (f fakeSnapshotter) CapabilityMetricsSnapshot() map[string]causalchain.CapabilityMetrics {
	return f
}

func TestMetricsBridgeObservesCapabilityTotals(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	snap := fakeSnapshotter{
		"echo": causalchain.CapabilityMetrics{Calls: 3, Failures: 1, TotalCostUSD: 0.5},
	}
	if _, err := RegisterMetricsBridge(meter, snap); err != nil {
		t.Fatalf("register bridge: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{"ccos.capability.calls", "ccos.capability.failures", "ccos.capability.cost_usd"} {
		if !found[name] {
			t.Fatalf("expected metric %q to be reported, got %v", name, found)
		}
	}
}
