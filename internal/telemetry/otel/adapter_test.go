package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"field-sales-platform/backend/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.Event{TenantID: 1}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := &otelEmitter{logger: capture}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := &domain.Event{
		TenantID:  7,
		UserID:    42,
		SessionID: "sess1",
		EventType: domain.EventGRPCRequest,
		Source:    "grpc_interceptor",
		Metadata:  json.RawMessage(`{"key":"value"}`),
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !capture.rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", capture.rec.Timestamp(), created)
	}
	if got := string(capture.rec.Body().AsBytes()); got != `{"key":"value"}` {
		t.Errorf("body = %q", got)
	}
	attrs := map[string]otellog.Value{}
	capture.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	if attrs["tenant_id"].AsInt64() != 7 {
		t.Errorf("tenant_id = %v", attrs["tenant_id"])
	}
	if attrs["user_id"].AsInt64() != 42 {
		t.Errorf("user_id = %v", attrs["user_id"])
	}
	if attrs["session_id"].AsString() != "sess1" {
		t.Errorf("session_id = %v", attrs["session_id"])
	}
	if attrs["event_type"].AsString() != domain.EventGRPCRequest {
		t.Errorf("event_type = %v", attrs["event_type"])
	}
}

func TestEmit_ZeroTimestampDefaultsToNow(t *testing.T) {
	capture := &recordCapture{}
	em := &otelEmitter{logger: capture}
	before := time.Now().Add(-time.Second)
	_ = em.Emit(context.Background(), &domain.Event{EventType: "x"})
	if capture.rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v should default to now", capture.rec.Timestamp())
	}
}
