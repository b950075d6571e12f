// Package kafka carries wire-format documents between the ingest edge and
// the indexer, backed by segmentio/kafka-go. The consumer drives a
// MessageHandler per record and only commits offsets the handler accepted,
// so transient indexing failures are redelivered.
package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/tessera-search/tessera/pkg/config"
)

// MessageHandler processes one record. A nil return commits the offset; an
// error leaves it uncommitted for redelivery.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer pulls records from the document ingest topic within a consumer
// group, one in flight at a time. Indexing order within a Kafka partition
// is the redelivery unit, so there is no prefetch pipeline.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start runs the consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.reader.Close()
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With(
		"partition", msg.Partition,
		"offset", msg.Offset,
		"doc_id", string(msg.Key),
	)
	log.Debug("record received", "size", len(msg.Value))

	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		// Uncommitted; redelivered after a restart or group rebalance.
		log.Error("handler failed, record left for redelivery", "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("offset commit failed", "error", err)
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
