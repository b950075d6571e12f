package partition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-search/tessera/pkg/config"
	"github.com/tessera-search/tessera/pkg/metrics"
)

// Registry owns the routers of every partition this node hosts. Routers are
// added at start and removed at stop only; there is no other shared mutable
// state.
type Registry struct {
	node    NodeID
	routers map[PartitionID]*Router
	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// StartRegistry opens cfg.Partitions routers in parallel, each with its own
// store directory under cfg.RootPath. On any failure every already-started
// router is stopped and the error returned. m may be nil.
func StartRegistry(cfg config.IndexConfig, node NodeID, m *metrics.Metrics) (*Registry, error) {
	reg := &Registry{
		node:    node,
		routers: make(map[PartitionID]*Router, cfg.Partitions),
		logger:  slog.Default().With("component", "partition-registry", "node", string(node)),
		metrics: m,
	}
	var g errgroup.Group
	for i := 0; i < cfg.Partitions; i++ {
		id := PartitionID(i)
		g.Go(func() error {
			router, err := Start(id, node, cfg, m)
			if err != nil {
				return fmt.Errorf("starting partition %d: %w", id, err)
			}
			reg.mu.Lock()
			reg.routers[id] = router
			reg.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		reg.Stop()
		return nil, err
	}
	if m != nil {
		m.ActivePartitions.Set(float64(len(reg.routers)))
	}
	reg.logger.Info("partition registry ready", "partitions", cfg.Partitions)
	return reg, nil
}

// Router returns the router for the given partition id.
func (reg *Registry) Router(id PartitionID) (*Router, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	router, ok := reg.routers[id]
	if !ok {
		return nil, fmt.Errorf("unknown partition %d (valid range: 0-%d)", id, len(reg.routers)-1)
	}
	return router, nil
}

// Routers returns a snapshot map of all partition routers.
func (reg *Registry) Routers() map[PartitionID]*Router {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	result := make(map[PartitionID]*Router, len(reg.routers))
	for id, router := range reg.routers {
		result[id] = router
	}
	return result
}

// NumPartitions returns the number of partitions this registry hosts.
func (reg *Registry) NumPartitions() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.routers)
}

// Node returns the registry's node identity.
func (reg *Registry) Node() NodeID {
	return reg.node
}

// Broadcast dispatches cmd to every partition router, collecting the first
// error but delivering to all. Non-targeted routers ignore Stream commands
// themselves; broadcast is the delivery mechanism of the streaming
// protocol.
func (reg *Registry) Broadcast(ctx context.Context, cmd Command) error {
	var firstErr error
	for id, router := range reg.Routers() {
		if err := router.Dispatch(ctx, cmd); err != nil {
			reg.logger.Error("broadcast dispatch failed",
				"partition", int(id),
				"kind", cmd.Kind(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stop stops every router, collecting the first error encountered. The
// registry must not be used afterwards.
func (reg *Registry) Stop() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var firstErr error
	for id, router := range reg.routers {
		if err := router.Stop(); err != nil {
			reg.logger.Error("router stop failed", "partition", int(id), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	reg.routers = make(map[PartitionID]*Router)
	if reg.metrics != nil {
		reg.metrics.ActivePartitions.Set(0)
	}
	return firstErr
}
