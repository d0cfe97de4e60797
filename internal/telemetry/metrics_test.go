package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.PushItem(ctx, "client", "Accepted")
	m.PushItem(ctx, "client", "Conflict")
	m.Pulled(ctx, "order", 5)
	m.Pulled(ctx, "order", 0)
	m.SessionTransitions(ctx, "revoked", 2)
	m.SessionGateDenied(ctx, "push")

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["fieldsales.sync.push.items"])
	assert.Equal(t, int64(5), sums["fieldsales.sync.pull.items"])
	assert.Equal(t, int64(2), sums["fieldsales.session.transitions"])
	assert.Equal(t, int64(1), sums["fieldsales.sync.session_gate.denied"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.PushItem(ctx, "client", "Accepted")
	m.Pulled(ctx, "client", 1)
	m.SessionTransitions(ctx, "expired", 1)
	m.SessionGateDenied(ctx, "pull")
	assert.NotNil(t, NopMetrics())
}
