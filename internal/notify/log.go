package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher records notifications in the log; used when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) Notify(ctx context.Context, pushToken string, msg Message) error {
	if pushToken == "" {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"kind":       msg.Kind,
		"tenant_id":  msg.TenantID,
		"user_id":    msg.UserID,
		"session_id": msg.SessionID,
		"reason":     msg.Reason,
	}).Info("notify: push notification")
	return nil
}

func (LogDispatcher) Close() error { return nil }
