package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tessera-search/tessera/pkg/config"
)

// Event is one record on the ingest topic. Value carries an already
// serialised wire-format document; the producer does no further encoding.
// Key is the document id, so revisions of a document stay ordered on one
// Kafka partition.
type Event struct {
	Key   string
	Value json.RawMessage
}

// Producer publishes ingest events. Writes are synchronous and acknowledged
// by all replicas; ingest favors durability over producer throughput.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic. Events are hashed by
// key onto Kafka partitions.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes one event and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: event.Value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("event published", "key", event.Key, "size", len(event.Value))
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
