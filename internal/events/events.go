// Package events publishes compliance verdict changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// DefaultTopic is the topic compliance changes are written to
const DefaultTopic = "compliance.changed"

// ComplianceChanged is emitted when a variant's verdict flips or it is
// evaluated for the first time
type ComplianceChanged struct {
	Shop              string             `json:"shop"`
	ProductID         string             `json:"productId"`
	VariantID         string             `json:"variantId"`
	IsCompliant       bool               `json:"isCompliant"`
	PreviousCompliant *bool              `json:"previousCompliant"`
	IsOnSale          bool               `json:"isOnSale"`
	Issues            []compliance.Issue `json:"issues"`
	LastChecked       time.Time          `json:"lastChecked"`
}

// Key returns the partition key of the event
func (e ComplianceChanged) Key() string {
	return compliance.VariantKey{Shop: e.Shop, ProductID: e.ProductID, VariantID: e.VariantID}.String()
}

// Publisher delivers compliance events
type Publisher interface {
	PublishComplianceChanged(ctx context.Context, event ComplianceChanged) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by variant
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds a writer hashing keys across partitions
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a publisher over writer
func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishComplianceChanged writes the event, carrying the trace context in
// message headers
func (p *KafkaPublisher) PublishComplianceChanged(ctx context.Context, event ComplianceChanged) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal compliance event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: body,
		Time:  event.LastChecked,
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write compliance event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishComplianceChanged(context.Context, ComplianceChanged) error { return nil }
func (NopPublisher) Close() error                                                      { return nil }

// headerCarrier adapts kafka message headers to a propagation.TextMapCarrier
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
