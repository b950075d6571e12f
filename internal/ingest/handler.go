// Package ingest consumes wire-format documents from Kafka, persists them to
// the document store, runs analysis, and dispatches the resulting postings
// to the owning partition routers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tessera-search/tessera/internal/analysis"
	"github.com/tessera-search/tessera/internal/docstore"
	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/internal/partition"
	"github.com/tessera-search/tessera/internal/schema"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
	"github.com/tessera-search/tessera/pkg/logger"
	"github.com/tessera-search/tessera/pkg/metrics"
)

// Handler processes one ingested document end to end: decode, store,
// analyze, dispatch postings.
type Handler struct {
	registry  *partition.Registry
	schemas   schema.Registry
	analyzers analysis.Analyzers
	docs      docstore.DocumentStore
	metrics   *metrics.Metrics
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(registry *partition.Registry, schemas schema.Registry, analyzers analysis.Analyzers, docs docstore.DocumentStore, m *metrics.Metrics) *Handler {
	return &Handler{
		registry:  registry,
		schemas:   schemas,
		analyzers: analyzers,
		docs:      docs,
		metrics:   m,
	}
}

// HandleDocument is the kafka.MessageHandler for the document ingest topic.
// Malformed payloads and schema or analyzer rejections are permanent: they
// are logged and dropped so the consumer commits past them. Store and
// dispatch failures are returned so the message is retried.
func (h *Handler) HandleDocument(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()
	ctx = logger.WithCorrelationID(ctx, string(key))
	log := logger.FromContext(ctx).With("component", "ingest")

	doc, err := document.Decode(value)
	if err != nil {
		log.Error("dropping undecodable document", "error", err)
		return nil
	}

	if h.docs != nil {
		if err := h.docs.Store(ctx, doc); err != nil {
			return fmt.Errorf("ingesting document %s/%s: %w", doc.Index(), doc.ID(), err)
		}
	}

	analyzed, err := analysis.Analyze(doc, h.schemas, h.analyzers)
	if err != nil {
		reason := "analyzer"
		if errors.Is(err, apperrors.ErrSchemaNotFound) {
			reason = "schema"
		}
		if h.metrics != nil {
			h.metrics.AnalysisErrorsTotal.WithLabelValues(reason).Inc()
		}
		log.Error("dropping unanalyzable document",
			"index", doc.Index(),
			"doc_id", doc.ID(),
			"reason", reason,
			"error", err,
		)
		return nil
	}
	if h.metrics != nil {
		h.metrics.DocsAnalyzedTotal.WithLabelValues(doc.Index()).Inc()
	}

	postings := analysis.Postings(analyzed)
	timestamp := time.Now().UnixNano()
	for _, p := range postings {
		id := PartitionFor(p.DocID, h.registry.NumPartitions())
		router, err := h.registry.Router(id)
		if err != nil {
			return fmt.Errorf("routing posting for document %s: %w", p.DocID, err)
		}
		cmd := partition.Index{
			Index:     p.Index,
			Field:     p.Field,
			Term:      p.Term,
			Value:     p.DocID,
			Props:     p.Props,
			Timestamp: timestamp,
		}
		if err := router.Dispatch(ctx, cmd); err != nil {
			return fmt.Errorf("indexing posting %s/%s/%s: %w", p.Index, p.Field, p.Term, err)
		}
	}
	if h.metrics != nil {
		h.metrics.PostingsTotal.Add(float64(len(postings)))
		h.metrics.IngestLagSeconds.Observe(time.Since(start).Seconds())
	}

	log.Debug("document indexed",
		"index", doc.Index(),
		"doc_id", doc.ID(),
		"postings", len(postings),
		"took", time.Since(start),
	)
	return nil
}

// PartitionFor maps a document id onto one of n partitions. All postings of
// a document land on the same partition. During shutdown the registry can
// drain to zero partitions under an in-flight message, so n <= 0 maps to
// partition 0 rather than dividing by zero.
func PartitionFor(docID string, n int) partition.PartitionID {
	if n <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(docID))
	return partition.PartitionID(h.Sum32() % uint32(n))
}
