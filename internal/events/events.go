package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kind names a lifecycle transition.
type Kind string

const (
	// KindTriggered is emitted when an alert becomes active.
	KindTriggered Kind = "alert.triggered"
	// KindEscalated is emitted when the follow-up notice is sent.
	KindEscalated Kind = "alert.escalated"
	// KindResolved is emitted when an alert is resolved.
	KindResolved Kind = "alert.resolved"
)

// Event is one alert lifecycle event.
type Event struct {
	Kind         Kind      `json:"kind"`
	AlertID      int64     `json:"alert_id"`
	SubjectPhone string    `json:"subject_phone"`
	Category     string    `json:"category,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// KafkaOptions configures the Kafka publisher.
type KafkaOptions struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// Kafka publishes events as JSON keyed by alert id, so one alert's events stay ordered.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a Kafka publisher.
func NewKafka(opts KafkaOptions) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(opts.Brokers...),
			Topic:                  opts.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           opts.Timeout,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one event.
func (k *Kafka) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}

	if err = k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.Kind, err)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Kind, err)
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AlertID, 10)),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}, nil
}
