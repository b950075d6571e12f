package ingest

import (
	"context"
	"fmt"

	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/pkg/kafka"
	"github.com/tessera-search/tessera/pkg/resilience"
)

// EventWriter produces one event onto the ingest topic. *kafka.Producer is
// the production implementation.
type EventWriter interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher writes wire-format documents onto the ingest topic, keyed by
// document id so all revisions of one document land on the same Kafka
// partition. Broker writes retry with backoff before the error surfaces.
type Publisher struct {
	events EventWriter
	retry  resilience.RetryConfig
}

// NewPublisher creates a Publisher over an already-configured writer.
func NewPublisher(events EventWriter) *Publisher {
	return &Publisher{
		events: events,
		retry:  resilience.RetryConfig{MaxAttempts: 3},
	}
}

// Publish encodes doc and produces it to the ingest topic.
func (p *Publisher) Publish(ctx context.Context, doc document.Document) error {
	data, err := document.Encode(doc)
	if err != nil {
		return fmt.Errorf("publishing document %s: %w", doc.ID(), err)
	}
	event := kafka.Event{
		Key:   doc.ID(),
		Value: data,
	}
	err = resilience.Retry(ctx, "document-publish", p.retry, func() error {
		return p.events.Publish(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("publishing document %s/%s: %w", doc.Index(), doc.ID(), err)
	}
	return nil
}
