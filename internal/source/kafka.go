package source

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/roach88/limitidx/internal/order"
)

// MessageReader is the subset of *kafka.Reader the Kafka source uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a consumer-group reader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Kafka consumes JSON events from a topic. Offsets are committed only when
// the engine acknowledges a delivery, so an unprocessed message is redelivered
// after a restart.
type Kafka struct {
	reader MessageReader
}

var _ Source = (*Kafka)(nil)

// NewKafka creates a consumer-group reader for cfg.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka source: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka source: no topic configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka source: no consumer group configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return NewKafkaFromReader(reader), nil
}

// NewKafkaFromReader wraps an existing reader.
func NewKafkaFromReader(r MessageReader) *Kafka {
	return &Kafka{reader: r}
}

// Next fetches the next message. It never returns io.EOF; the stream ends
// when ctx is cancelled.
func (k *Kafka) Next(ctx context.Context) (Delivery, error) {
	msg, err := k.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, fmt.Errorf("fetch message: %w", err)
	}

	ev, decodeErr := order.DecodeEvent(msg.Value)
	ev.Origin = fmt.Sprintf("%s/%d@%d", msg.Topic, msg.Partition, msg.Offset)

	return NewDelivery(ev, decodeErr, func(ctx context.Context) error {
		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit %s: %w", ev.Origin, err)
		}
		return nil
	}), nil
}

// Close closes the reader.
func (k *Kafka) Close() error {
	return k.reader.Close()
}
