// Package events implements the EventBus (spec §4.8): append-only
// publication over a dual transport — segmentio/kafka-go for durable,
// partitioned-by-aggregate_id delivery, and nats.go for low-latency
// fanout — grounded in distribution_service's go.mod, the one service in
// the pack pairing both transports.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Named event types the core emits (spec §4.8).
const (
	TypeOfferGenerated     = "offer.generated"
	TypeOfferAccepted      = "offer.accepted"
	TypeOfferExpired       = "offer.expired"
	TypeOrderCreated       = "order.created"
	TypeOrderPaymentPending = "order.payment_pending"
	TypeOrderPaid          = "order.paid"
	TypeOrderExpired       = "order.expired"
	TypeOrderCancelled     = "order.cancelled"
	TypeOrderItemRefunded  = "order.item_refunded"
	TypeFulfillmentIssued  = "fulfillment.issued"
	TypeFulfillmentConsumed = "fulfillment.consumed"
)

// Envelope is the minimal append-only schema spec §4.8 names. Delivery is
// at-least-once; consumers must be idempotent on EventID.
type Envelope struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Bus publishes to both transports. The core is write-only to the bus
// (spec §5's shared-resource policy).
type Bus struct {
	kafkaWriter *kafka.Writer
	nc          *nats.Conn
	topic       string
	log         *zap.Logger
}

// New constructs a Bus. kafkaBrokers is the list of broker addresses
// (main splits KAFKA_BROKERS on commas), handed to kafka.TCP for the
// writer's Addr; natsURL dials a standard nats.Conn.
func New(kafkaBrokers []string, topic string, natsURL string, log *zap.Logger) (*Bus, error) {
	nc, err := nats.Connect(natsURL, nats.MaxReconnects(5), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, err
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // partitions by message key == aggregate_id
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Bus{kafkaWriter: writer, nc: nc, topic: topic, log: log}, nil
}

// Publish appends one event, delivered to both transports. Kafka carries
// the durable, partitioned-by-aggregate_id record of truth; NATS carries
// the same payload for subscribers that only want low-latency fanout and
// tolerate missed messages.
func (b *Bus) Publish(ctx context.Context, eventType, aggregateID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:     uuid.New().String(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		AggregateID: aggregateID,
		Payload:     raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := b.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(aggregateID),
		Value: body,
	}); err != nil {
		b.log.Error("kafka publish failed", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	subject := "retailing." + eventType
	if err := b.nc.Publish(subject, body); err != nil {
		// NATS is best-effort fanout; the durable Kafka write above already
		// succeeded, so this failure is logged, not surfaced.
		b.log.Warn("nats publish failed", zap.String("subject", subject), zap.Error(err))
	}
	return nil
}

// Close releases both transport connections.
func (b *Bus) Close() error {
	b.nc.Close()
	return b.kafkaWriter.Close()
}
