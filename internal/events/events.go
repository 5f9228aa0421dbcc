// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUsers  = "user_events"
	TopicItems  = "item_events"
	TopicCarts  = "cart_events"
	TopicOrders = "order_events"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type     string         `json:"type"`
	EntityID string         `json:"entity_id"`
	UserID   string         `json:"user_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           publishTimeout,
	}}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Messages []Recorded
}

type Recorded struct {
	Topic string
	Key   string
	Event any
}

func (r *Recorder) Publish(_ context.Context, topic, key string, event any) error {
	r.Messages = append(r.Messages, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

// Types returns the Type of every recorded Event, in publish order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if ev, ok := m.Event.(Event); ok {
			out = append(out, ev.Type)
		}
	}
	return out
}
