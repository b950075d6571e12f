package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-search/tessera/internal/document"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
	"github.com/tessera-search/tessera/pkg/resilience"
)

func TestStoreFetchRoundTrip(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	ctx := context.Background()

	doc := document.New("doc1", "products").
		AddField("title", "red shoes").
		AddProp("source", "import")
	require.NoError(t, store.Store(ctx, doc))

	fetched, err := store.Fetch(ctx, "products", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", fetched.ID())
	assert.Equal(t, "products", fetched.Index())
	assert.Equal(t, []document.Field{{Name: "title", Value: "red shoes"}}, fetched.Fields())
	assert.Equal(t, []document.Field{{Name: "source", Value: "import"}}, fetched.Props())
}

func TestStoreOverwritesExisting(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, document.New("doc1", "products").AddField("title", "old")))
	require.NoError(t, store.Store(ctx, document.New("doc1", "products").AddField("title", "new")))

	fetched, err := store.Fetch(ctx, "products", "doc1")
	require.NoError(t, err)
	require.Len(t, fetched.Fields(), 1)
	assert.Equal(t, "new", fetched.Fields()[0].Value)
}

func TestFetchMissingDocument(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	_, err := store.Fetch(context.Background(), "products", "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemove(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, document.New("doc1", "products")))
	require.NoError(t, store.Remove(ctx, "products", "doc1"))

	_, err := store.Fetch(ctx, "products", "doc1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentsAreScopedByIndex(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, document.New("doc1", "products")))

	_, err := store.Fetch(ctx, "books", "doc1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFetchMissesDoNotTripBreaker(t *testing.T) {
	store := New(NewMemoryStore(), nil)
	ctx := context.Background()

	// A cold cache funnels every miss through here. Well past the default
	// failure threshold, the breaker must stay closed.
	for i := 0; i < 10; i++ {
		_, err := store.Fetch(ctx, "products", "nope")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
		require.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	require.NoError(t, store.Store(ctx, document.New("doc1", "products").AddField("title", "shoes")))
	fetched, err := store.Fetch(ctx, "products", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", fetched.ID())
}

// failingBackend fails every operation, for exercising the circuit breaker.
type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, errBackendDown
}
func (failingBackend) Put(ctx context.Context, bucket, key string, value []byte) error {
	return errBackendDown
}
func (failingBackend) Delete(ctx context.Context, bucket, key string) error {
	return errBackendDown
}

func TestBackendFailuresPropagate(t *testing.T) {
	store := New(failingBackend{}, nil)
	ctx := context.Background()

	err := store.Store(ctx, document.New("doc1", "products"))
	assert.ErrorIs(t, err, errBackendDown)

	_, err = store.Fetch(ctx, "products", "doc1")
	assert.ErrorIs(t, err, errBackendDown)

	assert.Error(t, store.Remove(ctx, "products", "doc1"))
}
