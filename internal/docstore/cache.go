package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/pkg/metrics"
	"github.com/tessera-search/tessera/pkg/redis"
)

// CachedStore layers a Redis read-through cache over a DocumentStore.
// Fetches for the same document are collapsed with singleflight so a cold
// key produces one backend read regardless of concurrent callers. Writes
// and removals invalidate the cached entry rather than updating it.
type CachedStore struct {
	inner   DocumentStore
	cache   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCachedStore wraps inner with the given Redis client and entry TTL.
func NewCachedStore(inner DocumentStore, cache *redis.Client, ttl time.Duration, m *metrics.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		logger:  slog.Default().With("component", "doc-cache"),
		metrics: m,
	}
}

func cacheKey(indexName, docID string) string {
	return "doc:" + indexName + ":" + docID
}

// Store writes through to the inner store and invalidates the cache entry.
func (c *CachedStore) Store(ctx context.Context, doc document.Document) error {
	if err := c.inner.Store(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx, doc.Index(), doc.ID())
	return nil
}

// Fetch returns the cached document if present, falling back to the inner
// store on a miss and populating the cache with the result.
func (c *CachedStore) Fetch(ctx context.Context, indexName, docID string) (document.Document, error) {
	key := cacheKey(indexName, docID)

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		doc, decErr := document.Decode([]byte(cached))
		if decErr == nil {
			if c.metrics != nil {
				c.metrics.DocCacheHitsTotal.Inc()
			}
			return doc, nil
		}
		// A corrupt cache entry is dropped and treated as a miss.
		c.logger.Warn("evicting undecodable cache entry", "key", key, "error", decErr)
		c.invalidate(ctx, indexName, docID)
	} else if !redis.IsNilError(err) {
		c.logger.Warn("cache read failed, falling back to store", "key", key, "error", err)
	}
	if c.metrics != nil {
		c.metrics.DocCacheMissesTotal.Inc()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		doc, fetchErr := c.inner.Fetch(ctx, indexName, docID)
		if fetchErr != nil {
			return document.Document{}, fetchErr
		}
		if data, encErr := document.Encode(doc); encErr == nil {
			if setErr := c.cache.Set(ctx, key, data, c.ttl); setErr != nil {
				c.logger.Warn("cache populate failed", "key", key, "error", setErr)
			}
		}
		return doc, nil
	})
	if err != nil {
		return document.Document{}, err
	}
	return v.(document.Document), nil
}

// Remove deletes from the inner store and invalidates the cache entry.
func (c *CachedStore) Remove(ctx context.Context, indexName, docID string) error {
	if err := c.inner.Remove(ctx, indexName, docID); err != nil {
		return err
	}
	c.invalidate(ctx, indexName, docID)
	return nil
}

func (c *CachedStore) invalidate(ctx context.Context, indexName, docID string) {
	key := cacheKey(indexName, docID)
	if err := c.cache.Del(ctx, key); err != nil {
		c.logger.Warn(fmt.Sprintf("cache invalidation failed for %s", key), "error", err)
	}
}
