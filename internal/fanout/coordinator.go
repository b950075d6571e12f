// Package fanout coordinates multi-partition reads: it broadcasts a command
// to every partition router on the node, collects the per-partition replies,
// and merges them into a single response for the caller.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/tessera-search/tessera/internal/index"
	"github.com/tessera-search/tessera/internal/partition"
)

// Target is one (partition, node) pair that answered the streaming
// handshake and may be streamed from.
type Target struct {
	Partition partition.PartitionID
	Node      partition.NodeID
}

// StreamRequest names the term to stream and the subterm range to cover.
type StreamRequest struct {
	Index        string
	Field        string
	Term         string
	Subtype      int
	StartSubterm int64
	EndSubterm   int64
	Filter       index.Filter
}

// Coordinator fans commands out over a partition registry.
type Coordinator struct {
	reg    *partition.Registry
	logger *slog.Logger
}

// New creates a Coordinator over reg.
func New(reg *partition.Registry) *Coordinator {
	return &Coordinator{
		reg:    reg,
		logger: slog.Default().With("component", "fanout"),
	}
}

// Handshake broadcasts InitStream and waits for one StreamReady per
// partition. The returned targets are the identities a subsequent Stream
// call addresses.
func (c *Coordinator) Handshake(ctx context.Context) ([]Target, error) {
	want := c.reg.NumPartitions()
	if want == 0 {
		return nil, fmt.Errorf("stream handshake: no active partitions")
	}
	replyTo := make(chan partition.Reply, want)
	correlationID := uuid.NewString()

	if err := c.reg.Broadcast(ctx, partition.InitStream{
		ReplyTo:       replyTo,
		CorrelationID: correlationID,
	}); err != nil {
		return nil, fmt.Errorf("stream handshake broadcast: %w", err)
	}

	targets := make([]Target, 0, want)
	for len(targets) < want {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stream handshake: %w", ctx.Err())
		case reply := <-replyTo:
			ready, ok := reply.(partition.StreamReady)
			if !ok || ready.CorrelationID != correlationID {
				continue
			}
			targets = append(targets, Target{Partition: ready.Partition, Node: ready.Node})
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Partition < targets[j].Partition })
	return targets, nil
}

// Stream performs the full streaming read: handshake, then one targeted
// Stream command per ready target, delivered by broadcast so that only the
// matching router responds. Results arrive on sink in batches merged across
// partitions; sink is closed when every target has sent its final batch.
func (c *Coordinator) Stream(ctx context.Context, req StreamRequest, sink chan<- index.StreamResult) error {
	defer close(sink)

	targets, err := c.Handshake(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug("stream handshake complete",
		"term", req.Term,
		"targets", len(targets),
	)

	replyTo := make(chan partition.Reply, len(targets)*2)
	correlationID := uuid.NewString()
	for _, t := range targets {
		cmd := partition.Stream{
			Index:           req.Index,
			Field:           req.Field,
			Term:            req.Term,
			Subtype:         req.Subtype,
			StartSubterm:    req.StartSubterm,
			EndSubterm:      req.EndSubterm,
			ReplyTo:         replyTo,
			CorrelationID:   correlationID,
			TargetPartition: t.Partition,
			TargetNode:      t.Node,
			Filter:          req.Filter,
		}
		if err := c.reg.Broadcast(ctx, cmd); err != nil {
			return fmt.Errorf("streaming term %q: %w", req.Term, err)
		}
	}

	remaining := len(targets)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("streaming term %q: %w", req.Term, ctx.Err())
		case reply := <-replyTo:
			batch, ok := reply.(partition.StreamResults)
			if !ok || batch.CorrelationID != correlationID {
				continue
			}
			for _, res := range batch.Results {
				select {
				case sink <- res:
				case <-ctx.Done():
					return fmt.Errorf("streaming term %q: %w", req.Term, ctx.Err())
				}
			}
			if batch.Done {
				remaining--
			}
		}
	}
	return nil
}

// Info broadcasts an Info command and sums the per-partition counts for the
// term. A term absent from every partition reports a zero count.
func (c *Coordinator) Info(ctx context.Context, indexName, field, term string) (index.TermInfo, error) {
	replies, err := c.collectInfo(ctx, partitionInfoCmd{indexName: indexName, field: field, term: term})
	if err != nil {
		return index.TermInfo{}, fmt.Errorf("term info for %q: %w", term, err)
	}
	total := index.TermInfo{Term: term}
	for _, reply := range replies {
		for _, ti := range reply.Terms {
			if ti.Term == term {
				total.Count += ti.Count
			}
		}
	}
	return total, nil
}

// InfoRange broadcasts an InfoRange command and merges the per-partition
// term statistics, summing counts for terms present on several partitions.
// The merged list is sorted by term and capped at maxResults when positive.
func (c *Coordinator) InfoRange(ctx context.Context, indexName, field, startTerm, endTerm string, maxResults int) ([]index.TermInfo, error) {
	replies, err := c.collectInfo(ctx, partitionInfoCmd{
		indexName:  indexName,
		field:      field,
		startTerm:  startTerm,
		endTerm:    endTerm,
		maxResults: maxResults,
		ranged:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("term range info %q-%q: %w", startTerm, endTerm, err)
	}

	counts := make(map[string]int)
	for _, reply := range replies {
		for _, ti := range reply.Terms {
			counts[ti.Term] += ti.Count
		}
	}
	merged := make([]index.TermInfo, 0, len(counts))
	for term, count := range counts {
		merged = append(merged, index.TermInfo{Term: term, Count: count})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Term < merged[j].Term })
	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}

type partitionInfoCmd struct {
	indexName  string
	field      string
	term       string
	startTerm  string
	endTerm    string
	maxResults int
	ranged     bool
}

// collectInfo broadcasts the info command and waits for one InfoReply per
// partition.
func (c *Coordinator) collectInfo(ctx context.Context, q partitionInfoCmd) ([]partition.InfoReply, error) {
	want := c.reg.NumPartitions()
	replyTo := make(chan partition.Reply, want)
	correlationID := uuid.NewString()

	var cmd partition.Command
	if q.ranged {
		cmd = partition.InfoRange{
			Index:         q.indexName,
			Field:         q.field,
			StartTerm:     q.startTerm,
			EndTerm:       q.endTerm,
			MaxResults:    q.maxResults,
			ReplyTo:       replyTo,
			CorrelationID: correlationID,
		}
	} else {
		cmd = partition.Info{
			Index:         q.indexName,
			Field:         q.field,
			Term:          q.term,
			ReplyTo:       replyTo,
			CorrelationID: correlationID,
		}
	}
	if err := c.reg.Broadcast(ctx, cmd); err != nil {
		return nil, err
	}

	replies := make([]partition.InfoReply, 0, want)
	for len(replies) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case reply := <-replyTo:
			info, ok := reply.(partition.InfoReply)
			if !ok || info.CorrelationID != correlationID {
				continue
			}
			replies = append(replies, info)
		}
	}
	return replies, nil
}
