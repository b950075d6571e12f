package partition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tessera-search/tessera/internal/index"
	"github.com/tessera-search/tessera/pkg/config"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
	"github.com/tessera-search/tessera/pkg/metrics"
)

const defaultStreamBatchSize = 100

type envelope struct {
	cmd  Command
	errc chan error
}

// Router is the single owner of one partition's local index store. Commands
// are delivered through one inbound channel and processed in delivery order
// by one worker goroutine; streaming reads run as cancellable goroutines off
// the worker so a long stream never blocks other commands.
//
// A Router is either active or stopped. Stop is terminal and must be called
// at most once.
type Router struct {
	partition PartitionID
	node      NodeID
	store     index.Store
	batchSize int
	inbox     chan envelope
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	streams   sync.WaitGroup
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Start opens the partition's store under cfg.RootPath and begins servicing
// commands. It fails with an error wrapping errors.ErrStoreOpen when the
// store cannot be opened. m may be nil.
func Start(partitionID PartitionID, node NodeID, cfg config.IndexConfig, m *metrics.Metrics) (*Router, error) {
	path := cfg.PartitionPath(int(partitionID))
	store, err := index.OpenLocal(path, cfg.SegmentMaxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: partition %d at %s: %v", apperrors.ErrStoreOpen, partitionID, path, err)
	}
	batchSize := cfg.StreamBatchSize
	if batchSize <= 0 {
		batchSize = defaultStreamBatchSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		partition: partitionID,
		node:      node,
		store:     store,
		batchSize: batchSize,
		inbox:     make(chan envelope, 128),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		logger: slog.Default().With(
			"component", "partition-router",
			"partition", int(partitionID),
			"node", string(node),
		),
		metrics: m,
	}
	r.wg.Add(1)
	go r.run()
	r.logger.Info("partition router started", "path", path)
	return r, nil
}

// Partition returns the router's partition id.
func (r *Router) Partition() PartitionID { return r.partition }

// Node returns the router's node identity.
func (r *Router) Node() NodeID { return r.node }

// Dispatch delivers one command to the partition worker and returns its
// result. Commands to one partition are processed in delivery order.
func (r *Router) Dispatch(ctx context.Context, cmd Command) error {
	if r.metrics != nil {
		r.metrics.CommandsTotal.WithLabelValues(cmd.Kind()).Inc()
	}
	env := envelope{cmd: cmd, errc: make(chan error, 1)}
	select {
	case r.inbox <- env:
	case <-r.done:
		return fmt.Errorf("%w: partition %d", apperrors.ErrRouterStopped, r.partition)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.errc:
		return r.countErr(cmd, err)
	case <-r.done:
		// The worker may have completed the command right as it stopped.
		select {
		case err := <-env.errc:
			return r.countErr(cmd, err)
		default:
			return fmt.Errorf("%w: partition %d", apperrors.ErrRouterStopped, r.partition)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) countErr(cmd Command, err error) error {
	if err != nil && r.metrics != nil {
		r.metrics.CommandErrorsTotal.WithLabelValues(cmd.Kind()).Inc()
	}
	return err
}

// Fold applies fn over every entry in the partition's store, threading acc
// through. The store handle is safe for concurrent readers, so Fold runs
// directly rather than through the command worker.
func (r *Router) Fold(ctx context.Context, fn func(acc any, e index.Entry) any, acc any) (any, error) {
	return r.store.Fold(ctx, fn, acc)
}

// Fetch is a point lookup by document key. The store is organized by
// (field, term) postings, so key lookups always report not found;
// full-document retrieval goes through the document store adapter instead.
func (r *Router) Fetch(indexName, docID string) ([]byte, error) {
	return nil, fmt.Errorf("%w: document %s/%s", apperrors.ErrNotFound, indexName, docID)
}

// List reports that key listing is not supported.
func (r *Router) List() ([]string, error) {
	return nil, fmt.Errorf("%w: key listing", apperrors.ErrNotSupported)
}

// ListBuckets reports that bucket listing is not supported.
func (r *Router) ListBuckets() ([]string, error) {
	return nil, fmt.Errorf("%w: bucket listing", apperrors.ErrNotSupported)
}

// Delete reports that key deletion is not supported.
func (r *Router) Delete(indexName, docID string) error {
	return fmt.Errorf("%w: key deletion", apperrors.ErrNotSupported)
}

// Stop terminates the router and releases the store handle. In-flight
// streams are cancelled. Stop must be called exactly once; the router must
// not be used afterwards.
func (r *Router) Stop() error {
	close(r.done)
	r.cancel()
	r.wg.Wait()
	r.streams.Wait()
	err := r.store.Close()
	r.logger.Info("partition router stopped")
	return err
}

func (r *Router) run() {
	defer r.wg.Done()
	for {
		select {
		case env := <-r.inbox:
			env.errc <- r.handle(env.cmd)
		case <-r.done:
			return
		}
	}
}

func (r *Router) handle(cmd Command) error {
	switch c := cmd.(type) {
	case Index:
		err := r.store.Index(r.ctx, index.Entry{
			Index:     c.Index,
			Field:     c.Field,
			Term:      c.Term,
			Subtype:   c.Subtype,
			Subterm:   c.Subterm,
			Value:     c.Value,
			Props:     c.Props,
			Timestamp: c.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("indexing %s/%s/%s: %w", c.Index, c.Field, c.Term, err)
		}
		return nil

	case InitStream:
		r.send(c.ReplyTo, StreamReady{
			Partition:     r.partition,
			Node:          r.node,
			CorrelationID: c.CorrelationID,
		})
		return nil

	case Stream:
		if c.TargetPartition != r.partition || c.TargetNode != r.node {
			// Other node or partition, not an error.
			r.logger.Debug("stream targeted elsewhere, ignoring",
				"target_partition", int(c.TargetPartition),
				"target_node", string(c.TargetNode),
				"correlation_id", c.CorrelationID,
			)
			return nil
		}
		r.streams.Add(1)
		go r.runStream(c)
		return nil

	case Info:
		info, err := r.store.Info(r.ctx, c.Index, c.Field, c.Term)
		if err != nil {
			return fmt.Errorf("term info %s/%s/%s: %w", c.Index, c.Field, c.Term, err)
		}
		r.send(c.ReplyTo, InfoReply{
			CorrelationID: c.CorrelationID,
			Node:          r.node,
			Partition:     r.partition,
			Terms:         []index.TermInfo{info},
		})
		return nil

	case InfoRange:
		infos, err := r.store.InfoRange(r.ctx, c.Index, c.Field, c.StartTerm, c.EndTerm, c.MaxResults)
		if err != nil {
			return fmt.Errorf("term range info %s/%s: %w", c.Index, c.Field, err)
		}
		r.send(c.ReplyTo, InfoReply{
			CorrelationID: c.CorrelationID,
			Node:          r.node,
			Partition:     r.partition,
			Terms:         infos,
		})
		return nil

	default:
		return fmt.Errorf("%w: command kind %q", apperrors.ErrUnsupportedOperation, cmd.Kind())
	}
}

// runStream executes one matching Stream command off the worker goroutine,
// batching results to the reply channel and finishing with a Done batch.
func (r *Router) runStream(c Stream) {
	defer r.streams.Done()
	start := time.Now()

	sink := make(chan index.StreamResult, r.batchSize)
	errc := make(chan error, 1)
	go func() {
		errc <- r.store.Stream(r.ctx, index.StreamQuery{
			Index:        c.Index,
			Field:        c.Field,
			Term:         c.Term,
			Subtype:      c.Subtype,
			StartSubterm: c.StartSubterm,
			EndSubterm:   c.EndSubterm,
			Filter:       c.Filter,
		}, sink)
		close(sink)
	}()

	total := 0
	batch := make([]index.StreamResult, 0, r.batchSize)
	for res := range sink {
		batch = append(batch, res)
		total++
		if len(batch) >= r.batchSize {
			if !r.send(c.ReplyTo, StreamResults{
				CorrelationID: c.CorrelationID,
				Partition:     r.partition,
				Results:       batch,
			}) {
				// Receiver gone; unblock the store and bail out.
				for range sink {
				}
				<-errc
				return
			}
			batch = make([]index.StreamResult, 0, r.batchSize)
		}
	}
	if err := <-errc; err != nil && r.ctx.Err() == nil {
		r.logger.Error("streaming read failed",
			"term", c.Term,
			"correlation_id", c.CorrelationID,
			"error", err,
		)
	}
	r.send(c.ReplyTo, StreamResults{
		CorrelationID: c.CorrelationID,
		Partition:     r.partition,
		Results:       batch,
		Done:          true,
	})

	if r.metrics != nil {
		r.metrics.StreamDuration.Observe(time.Since(start).Seconds())
		r.metrics.StreamResultsCount.Observe(float64(total))
	}
	r.logger.Debug("stream finished",
		"term", c.Term,
		"results", total,
		"correlation_id", c.CorrelationID,
	)
}

// send delivers a reply unless the router is shutting down. It reports
// whether the reply was delivered.
func (r *Router) send(to chan<- Reply, reply Reply) bool {
	select {
	case to <- reply:
		return true
	case <-r.ctx.Done():
		return false
	}
}
