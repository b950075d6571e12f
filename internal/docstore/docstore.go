package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessera-search/tessera/internal/document"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
	"github.com/tessera-search/tessera/pkg/metrics"
	"github.com/tessera-search/tessera/pkg/resilience"
)

// DocumentStore is the document-level persistence interface. Both the plain
// Store and the redis-backed CachedStore implement it.
type DocumentStore interface {
	Store(ctx context.Context, doc document.Document) error
	Fetch(ctx context.Context, indexName, docID string) (document.Document, error)
	Remove(ctx context.Context, indexName, docID string) error
}

// Store persists documents against an ObjectStore, keyed by
// (index name, document id). Updates are read-modify-write with
// last-writer-wins semantics; there is no optimistic concurrency control at
// this layer. Backend calls run behind a circuit breaker so a failing
// object store sheds load quickly.
type Store struct {
	objects ObjectStore
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Store over the given backend. m may be nil.
func New(objects ObjectStore, m *metrics.Metrics) *Store {
	return &Store{
		objects: objects,
		breaker: resilience.NewCircuitBreaker("object-store", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "docstore"),
		metrics: m,
	}
}

// Store writes doc to the object store, replacing any existing object under
// the same (index, id) key.
func (s *Store) Store(ctx context.Context, doc document.Document) error {
	data, err := document.Encode(doc)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID(), err)
	}

	existed := false
	err = s.breaker.Execute(func() error {
		_, getErr := s.objects.Get(ctx, doc.Index(), doc.ID())
		switch {
		case getErr == nil:
			existed = true
		case !errors.Is(getErr, apperrors.ErrNotFound):
			return getErr
		}
		return s.objects.Put(ctx, doc.Index(), doc.ID(), data)
	})
	if err != nil {
		s.countErr("put")
		return fmt.Errorf("storing document %s/%s: %w", doc.Index(), doc.ID(), err)
	}

	outcome := "created"
	if existed {
		outcome = "updated"
	}
	if s.metrics != nil {
		s.metrics.DocsStoredTotal.WithLabelValues(outcome).Inc()
	}
	s.logger.Debug("document stored",
		"index", doc.Index(),
		"doc_id", doc.ID(),
		"outcome", outcome,
	)
	return nil
}

// Fetch retrieves and decodes one document. A missing document fails with
// an error wrapping errors.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, indexName, docID string) (document.Document, error) {
	var data []byte
	var missing error
	err := s.breaker.Execute(func() error {
		var getErr error
		data, getErr = s.objects.Get(ctx, indexName, docID)
		// A miss is a healthy backend answer. It must not count against
		// the breaker, or steady read-through-cache misses would open it
		// and reject writes too.
		if errors.Is(getErr, apperrors.ErrNotFound) {
			missing = getErr
			return nil
		}
		return getErr
	})
	if err != nil {
		s.countErr("get")
		return document.Document{}, fmt.Errorf("fetching document %s/%s: %w", indexName, docID, err)
	}
	if missing != nil {
		return document.Document{}, fmt.Errorf("fetching document %s/%s: %w", indexName, docID, missing)
	}
	doc, err := document.Decode(data)
	if err != nil {
		return document.Document{}, fmt.Errorf("decoding stored document %s/%s: %w", indexName, docID, err)
	}
	return doc, nil
}

// Remove deletes one document from the object store.
func (s *Store) Remove(ctx context.Context, indexName, docID string) error {
	err := s.breaker.Execute(func() error {
		return s.objects.Delete(ctx, indexName, docID)
	})
	if err != nil {
		s.countErr("delete")
		return fmt.Errorf("removing document %s/%s: %w", indexName, docID, err)
	}
	return nil
}

func (s *Store) countErr(op string) {
	if s.metrics != nil {
		s.metrics.ObjectStoreErrsTotal.WithLabelValues(op).Inc()
	}
}
