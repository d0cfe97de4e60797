package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageWriter is the subset of *kafka.Writer used by KafkaDispatcher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// envelope is the record published for the push gateway.
type envelope struct {
	PushToken string  `json:"pushToken"`
	Message   Message `json:"message"`
}

// KafkaDispatcher publishes notifications to a topic consumed by the push gateway.
type KafkaDispatcher struct {
	writer messageWriter
	topic  string
}

// NewKafkaDispatcher returns a dispatcher writing to topic. Returns nil when brokers or topic are empty.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaDispatcher{writer: writer, topic: topic}
}

// Notify writes one record keyed by session id so notices for a session stay ordered.
func (d *KafkaDispatcher) Notify(ctx context.Context, pushToken string, msg Message) error {
	if d == nil || d.writer == nil || pushToken == "" {
		return nil
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(envelope{PushToken: pushToken, Message: msg})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(msg.SessionID), Value: payload}); err != nil {
		logrus.WithFields(logrus.Fields{"topic": d.topic, "session_id": msg.SessionID}).
			WithError(err).Warn("notify: kafka write failed")
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (d *KafkaDispatcher) Close() error {
	if d == nil || d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
