package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"field-sales-platform/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, &domain.Event{TenantID: 1, EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil)
	time.Sleep(20 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestEmitAsync_Delivers(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(emitter, &domain.Event{TenantID: 3, EventType: domain.EventGRPCRequest})

	select {
	case <-emitter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not emitted")
	}
	events := emitter.getEvents()
	if len(events) != 1 || events[0].TenantID != 3 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("sink down"), done: make(chan struct{}, 1)}
	EmitAsync(emitter, &domain.Event{EventType: "test"})
	select {
	case <-emitter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not emitted")
	}
}

func TestShutdownDrainDuration(t *testing.T) {
	if ShutdownDrainDuration < emitTimeout {
		t.Errorf("ShutdownDrainDuration %v must be >= emitTimeout %v", ShutdownDrainDuration, emitTimeout)
	}
}
