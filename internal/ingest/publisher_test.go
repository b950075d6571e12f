package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/pkg/kafka"
	"github.com/tessera-search/tessera/pkg/resilience"
)

var errBrokerDown = errors.New("broker down")

// flakyWriter fails its first n publishes, then records accepted events.
type flakyWriter struct {
	failures int
	attempts int
	events   []kafka.Event
}

func (w *flakyWriter) Publish(ctx context.Context, event kafka.Event) error {
	w.attempts++
	if w.attempts <= w.failures {
		return errBrokerDown
	}
	w.events = append(w.events, event)
	return nil
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond}
}

func TestPublishProducesWireDocument(t *testing.T) {
	writer := &flakyWriter{}
	pub := NewPublisher(writer)

	doc := document.New("b1", "books").AddField("title", "the cat sat")
	require.NoError(t, pub.Publish(context.Background(), doc))

	require.Len(t, writer.events, 1)
	assert.Equal(t, "b1", writer.events[0].Key)

	sent, err := document.Decode(writer.events[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "b1", sent.ID())
	assert.Equal(t, "books", sent.Index())
	assert.Equal(t, []document.Field{{Name: "title", Value: "the cat sat"}}, sent.Fields())
}

func TestPublishRetriesTransientBrokerFailures(t *testing.T) {
	writer := &flakyWriter{failures: 2}
	pub := NewPublisher(writer)
	pub.retry = fastRetry(3)

	require.NoError(t, pub.Publish(context.Background(), document.New("b1", "books")))
	assert.Equal(t, 3, writer.attempts)
	assert.Len(t, writer.events, 1)
}

func TestPublishGivesUpAfterRetriesExhausted(t *testing.T) {
	writer := &flakyWriter{failures: 10}
	pub := NewPublisher(writer)
	pub.retry = fastRetry(3)

	err := pub.Publish(context.Background(), document.New("b1", "books"))
	assert.ErrorIs(t, err, errBrokerDown)
	assert.Equal(t, 3, writer.attempts)
	assert.Empty(t, writer.events)
}
