package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the OTel instruments recorded by the sync orchestrator and session registry.
// A nil *Metrics records nothing.
type Metrics struct {
	pushItems          metric.Int64Counter
	pulledItems        metric.Int64Counter
	sessionTransitions metric.Int64Counter
	sessionGateDenied  metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	pushItems, err := meter.Int64Counter("fieldsales.sync.push.items",
		metric.WithDescription("Pushed items by entity type and outcome"))
	if err != nil {
		return nil, err
	}
	pulledItems, err := meter.Int64Counter("fieldsales.sync.pull.items",
		metric.WithDescription("Entities returned by pull, by entity type"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("fieldsales.session.transitions",
		metric.WithDescription("Device session status changes, by target status"))
	if err != nil {
		return nil, err
	}
	denied, err := meter.Int64Counter("fieldsales.sync.session_gate.denied",
		metric.WithDescription("Sync calls refused because the device session was not active"))
	if err != nil {
		return nil, err
	}
	return &Metrics{pushItems: pushItems, pulledItems: pulledItems, sessionTransitions: transitions, sessionGateDenied: denied}, nil
}

// NopMetrics returns instruments backed by the no-op meter.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *Metrics) PushItem(ctx context.Context, entityType, outcome string) {
	if m == nil {
		return
	}
	m.pushItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Pulled(ctx context.Context, entityType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pulledItems.Add(ctx, int64(n), metric.WithAttributes(attribute.String("entity_type", entityType)))
}

func (m *Metrics) SessionTransitions(ctx context.Context, status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sessionTransitions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) SessionGateDenied(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.sessionGateDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
