// Package docstore persists and retrieves documents through a pluggable
// object store, keyed by (index name, document id). The adapter marshals
// documents to their wire form; the actual byte storage is delegated to an
// ObjectStore backend (in-memory, PostgreSQL, or MinIO).
package docstore

import "context"

// ObjectStore is the byte-level object storage consumed by the adapter.
// Implementations must return an error wrapping errors.ErrNotFound from Get
// when the object does not exist, and must be safe for concurrent use.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
}
