// Package events publishes ledger lifecycle events to Kafka.
// Publishing happens after commit and never influences transaction outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/obrapay/abono/internal/domain"
)

// Event types carried in the envelope and as the message key.
const (
	TypePaymentRecorded  = "payment.recorded"
	TypePaymentCancelled = "payment.cancelled"
)

// Envelope wraps a payment snapshot with event identity.
type Envelope struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	OccurredAt time.Time           `json:"occurred_at"`
	Payment    domain.PaymentEntry `json:"payment"`
}

// NewEnvelope builds an envelope for the given event type.
func NewEnvelope(eventType string, entry domain.PaymentEntry) Envelope {
	return Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payment:    entry,
	}
}

// KafkaPublisher writes envelopes to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish marshals the event and writes it keyed by event type.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventType),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. The default when event publishing is disabled.
type Nop struct{}

// Publish implements domain.EventPublisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

var (
	_ domain.EventPublisher = (*KafkaPublisher)(nil)
	_ domain.EventPublisher = Nop{}
)
