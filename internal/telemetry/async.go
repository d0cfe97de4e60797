package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"field-sales-platform/backend/internal/telemetry/domain"
)

// emitTimeout bounds one background emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is the pause between gRPC GracefulStop and provider shutdown that lets
// background emits finish. It is never shorter than emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync hands event to emitter on a goroutine and returns immediately. Failures are logged.
// The emit runs detached from the request context so a finished RPC does not cancel it.
// A nil emitter or event is a no-op.
func EmitAsync(emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		err := emitter.Emit(ctx, event)
		if err == nil {
			return
		}
		logrus.WithFields(logrus.Fields{
			"event_type": event.EventType,
			"tenant_id":  event.TenantID,
			"session_id": event.SessionID,
		}).WithError(err).Warn("telemetry: async emit failed")
	}()
}
