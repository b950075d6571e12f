package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-search/tessera/internal/analysis"
	"github.com/tessera-search/tessera/internal/docstore"
	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/internal/index"
	"github.com/tessera-search/tessera/internal/partition"
	"github.com/tessera-search/tessera/internal/schema"
	"github.com/tessera-search/tessera/pkg/config"
)

func startIngest(t *testing.T, docs docstore.DocumentStore) (*Handler, *partition.Registry) {
	t.Helper()
	cfg := config.IndexConfig{
		RootPath:        t.TempDir(),
		Partitions:      4,
		StreamBatchSize: 10,
	}
	reg, err := partition.StartRegistry(cfg, "node-a", nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Stop() })

	schemas := schema.NewStaticRegistry(schema.New("books", "whitespace"))
	return NewHandler(reg, schemas, analysis.DefaultAnalyzers(), docs, nil), reg
}

func termCount(t *testing.T, reg *partition.Registry, pid partition.PartitionID, term string) int {
	t.Helper()
	router, err := reg.Router(pid)
	require.NoError(t, err)
	replyTo := make(chan partition.Reply, 1)
	require.NoError(t, router.Dispatch(context.Background(), partition.Info{
		Index: "books", Field: "title", Term: term,
		ReplyTo: replyTo, CorrelationID: "t",
	}))
	reply := (<-replyTo).(partition.InfoReply)
	require.Len(t, reply.Terms, 1)
	return reply.Terms[0].Count
}

func TestHandleDocumentIndexesPostings(t *testing.T) {
	docs := docstore.New(docstore.NewMemoryStore(), nil)
	handler, reg := startIngest(t, docs)
	ctx := context.Background()

	payload := []byte(`{"id":"b1","index":"books","fields":{"title":"the cat sat"},"props":{}}`)
	require.NoError(t, handler.HandleDocument(ctx, []byte("b1"), payload))

	// All postings of one document land on the same partition.
	pid := PartitionFor("b1", reg.NumPartitions())
	for _, term := range []string{"the", "cat", "sat"} {
		assert.Equal(t, 1, termCount(t, reg, pid, term), "term %q", term)
	}

	stored, err := docs.Fetch(ctx, "books", "b1")
	require.NoError(t, err)
	assert.Equal(t, "the cat sat", stored.Fields()[0].Value)
}

func TestHandleDocumentStreamablePostings(t *testing.T) {
	handler, reg := startIngest(t, nil)
	ctx := context.Background()

	require.NoError(t, handler.HandleDocument(ctx, []byte("b1"),
		[]byte(`{"id":"b1","index":"books","fields":{"title":"cat"}}`)))
	require.NoError(t, handler.HandleDocument(ctx, []byte("b2"),
		[]byte(`{"id":"b2","index":"books","fields":{"title":"cat dog"}}`)))

	values := map[string]bool{}
	for pid := 0; pid < reg.NumPartitions(); pid++ {
		router, err := reg.Router(partition.PartitionID(pid))
		require.NoError(t, err)
		replyTo := make(chan partition.Reply, 8)
		require.NoError(t, router.Dispatch(ctx, partition.Stream{
			Index: "books", Field: "title", Term: "cat",
			StartSubterm: 0, EndSubterm: 100,
			ReplyTo:         replyTo,
			CorrelationID:   "s",
			TargetPartition: partition.PartitionID(pid),
			TargetNode:      "node-a",
		}))
		for {
			batch := (<-replyTo).(partition.StreamResults)
			for _, r := range batch.Results {
				values[r.Value] = true
			}
			if batch.Done {
				break
			}
		}
	}
	assert.Equal(t, map[string]bool{"b1": true, "b2": true}, values)
}

func TestHandleDocumentPostingsCarryPositions(t *testing.T) {
	handler, reg := startIngest(t, nil)
	ctx := context.Background()

	require.NoError(t, handler.HandleDocument(ctx, []byte("b1"),
		[]byte(`{"id":"b1","index":"books","fields":{"title":"cat sat cat"}}`)))

	pid := PartitionFor("b1", reg.NumPartitions())
	router, err := reg.Router(pid)
	require.NoError(t, err)

	var props map[string]any
	acc, err := router.Fold(ctx, func(acc any, e index.Entry) any {
		if e.Term == "cat" {
			props = e.Props
		}
		return acc.(int) + 1
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, acc)
	require.NotNil(t, props)
	assert.Equal(t, []int{1, 3}, props["word_pos"])
	assert.Equal(t, 2, props["freq"])
}

func TestHandleDocumentDropsMalformedPayloads(t *testing.T) {
	handler, _ := startIngest(t, nil)
	ctx := context.Background()

	// Permanent failures are dropped, not retried.
	assert.NoError(t, handler.HandleDocument(ctx, []byte("k"), []byte(`not json`)))
	assert.NoError(t, handler.HandleDocument(ctx, []byte("k"), []byte(`{"fields":{}}`)))
	assert.NoError(t, handler.HandleDocument(ctx, []byte("k"),
		[]byte(`{"id":"x","index":"no-such-index","fields":{"title":"cat"}}`)))
}

type failingDocs struct{}

var errStoreDown = errors.New("store down")

func (failingDocs) Store(ctx context.Context, doc document.Document) error { return errStoreDown }
func (failingDocs) Fetch(ctx context.Context, indexName, docID string) (document.Document, error) {
	return document.Document{}, errStoreDown
}
func (failingDocs) Remove(ctx context.Context, indexName, docID string) error { return errStoreDown }

func TestHandleDocumentRetriesOnStoreFailure(t *testing.T) {
	handler, _ := startIngest(t, failingDocs{})

	err := handler.HandleDocument(context.Background(), []byte("b1"),
		[]byte(`{"id":"b1","index":"books","fields":{"title":"cat"}}`))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestPartitionForIsStable(t *testing.T) {
	first := PartitionFor("doc-42", 8)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, PartitionFor("doc-42", 8))
	}
	assert.GreaterOrEqual(t, int(first), 0)
	assert.Less(t, int(first), 8)
}

func TestPartitionForWithoutPartitions(t *testing.T) {
	assert.Equal(t, partition.PartitionID(0), PartitionFor("doc-42", 0))
	assert.Equal(t, partition.PartitionID(0), PartitionFor("doc-42", -1))
}
