// Package partition implements the per-partition command router of the
// indexing front-end: a single-owner worker per partition that dispatches
// typed commands to the partition's local index store, plus the
// partition-affinity streaming protocol layered on top.
package partition

import "github.com/tessera-search/tessera/internal/index"

// PartitionID identifies one partition of the index store.
type PartitionID int

// NodeID identifies one logical node. Commands carry it explicitly; routing
// never relies on ambient process identity.
type NodeID string

// Command is a partition command. The router switches on the concrete type
// and rejects kinds it does not know with ErrUnsupportedOperation.
type Command interface {
	// Kind names the command for logs and metrics.
	Kind() string
}

// Reply is a message sent back on a command's reply channel.
type Reply interface {
	isReply()
}

// Index forwards one posting record to the partition's local store.
type Index struct {
	Index     string
	Field     string
	Term      string
	Subtype   int
	Subterm   int64
	Value     string
	Props     map[string]any
	Timestamp int64
}

// Kind implements Command.
func (Index) Kind() string { return "index" }

// InitStream is the streaming handshake: the router answers with exactly
// one StreamReady carrying its partition and node identity, letting a
// fan-out coordinator learn which (partition, node) pairs are reachable
// before issuing the real stream command.
type InitStream struct {
	ReplyTo       chan<- Reply
	CorrelationID string
}

// Kind implements Command.
func (InitStream) Kind() string { return "init_stream" }

// Stream is a filtered streaming read of one term over a subterm range.
// The command may be delivered to every local partition; only the router
// whose identity matches TargetPartition and TargetNode responds, all
// others silently ignore it.
type Stream struct {
	Index           string
	Field           string
	Term            string
	Subtype         int
	StartSubterm    int64
	EndSubterm      int64
	ReplyTo         chan<- Reply
	CorrelationID   string
	TargetPartition PartitionID
	TargetNode      NodeID
	Filter          index.Filter
}

// Kind implements Command.
func (Stream) Kind() string { return "stream" }

// Info requests the statistic for one term.
type Info struct {
	Index         string
	Field         string
	Term          string
	ReplyTo       chan<- Reply
	CorrelationID string
}

// Kind implements Command.
func (Info) Kind() string { return "info" }

// InfoRange requests statistics for every term in an inclusive range,
// bounded by MaxResults when positive.
type InfoRange struct {
	Index         string
	Field         string
	StartTerm     string
	EndTerm       string
	MaxResults    int
	ReplyTo       chan<- Reply
	CorrelationID string
}

// Kind implements Command.
func (InfoRange) Kind() string { return "info_range" }

// StreamReady is the handshake reply to InitStream.
type StreamReady struct {
	Partition     PartitionID
	Node          NodeID
	CorrelationID string
}

func (StreamReady) isReply() {}

// StreamResults carries one batch of streaming results. The final batch has
// Done set; a stream with no matches sends a single empty Done batch.
type StreamResults struct {
	CorrelationID string
	Partition     PartitionID
	Results       []index.StreamResult
	Done          bool
}

func (StreamResults) isReply() {}

// InfoReply answers Info and InfoRange with (term, count) tuples tagged by
// the responding node and partition.
type InfoReply struct {
	CorrelationID string
	Node          NodeID
	Partition     PartitionID
	Terms         []index.TermInfo
}

func (InfoReply) isReply() {}
