package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

// DefaultTopic receives an event after every live merge.
const DefaultTopic = "hotel-offers.refreshed"

// OffersRefreshed announces that a city's merged offer list was rebuilt from the sources.
type OffersRefreshed struct {
	RunID        string                  `json:"run_id"`
	City         string                  `json:"city"`
	OfferCount   int                     `json:"offer_count"`
	SourceStatus map[string]offer.Status `json:"source_status"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes OffersRefreshed events to a Kafka topic, keyed by city.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher constructs a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

// NewKafkaPublisherWithWriter constructs a publisher over an injected writer (for tests).
func NewKafkaPublisherWithWriter(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish encodes ev as JSON and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, ev OffersRefreshed) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling offers refreshed event for %s: %w", ev.City, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.City), Value: b}); err != nil {
		return fmt.Errorf("publishing offers refreshed event for %s: %w", ev.City, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OffersRefreshed) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
