// Package events emits security-relevant events (login failures, lockouts,
// revocations) to Kafka for downstream alerting. Emission is best-effort and
// never blocks or fails the security path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted by the session service.
const (
	TypeLoginFailure    = "login_failure"
	TypeLoginLockout    = "login_lockout"
	TypeLoginSuccess    = "login_success"
	TypeTokenRevoked    = "token_revoked"
	TypePasswordChanged = "password_changed"
)

// Event is one security event. Identifier is the submitted login identifier;
// Subject is the principal id when known.
type Event struct {
	Type       string    `json:"type"`
	Subject    string    `json:"subject,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	At         time.Time `json:"at"`
	Metadata   string    `json:"metadata,omitempty"`
}

// Emitter publishes security events.
type Emitter interface {
	Emit(ctx context.Context, e Event)
	Close() error
}

// NopEmitter discards events; used when no brokers are configured.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, e Event) {}
func (NopEmitter) Close() error                      { return nil }

// KafkaEmitter publishes events to one Kafka topic.
type KafkaEmitter struct {
	writer *kafka.Writer
}

// NewKafkaEmitter creates an emitter writing to topic on brokers. Returns nil
// when brokers or topic are unset; callers may use the nil-safe methods or a
// NopEmitter instead.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Emit serializes the event as JSON and writes it with a short timeout so a
// slow broker cannot stall the request path. Failures are dropped.
func (e *KafkaEmitter) Emit(ctx context.Context, ev Event) {
	if e == nil || e.writer == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = e.writer.WriteMessages(writeCtx, kafka.Message{Value: payload})
}

// Close flushes and closes the underlying writer.
func (e *KafkaEmitter) Close() error {
	if e == nil || e.writer == nil {
		return nil
	}
	return e.writer.Close()
}
