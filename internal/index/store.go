// Package index defines the posting model and the local index store consumed
// by the partition command router. Postings are organized by (index, field,
// term); the store supports point writes, term statistics, and filtered
// range streaming of posting records.
package index

import "context"

// Posting is one (index, field, term, document) record with its properties,
// as produced by the postings generator. Properties always include word_pos
// (ordered 1-based token positions) and freq (their count), plus any facet
// properties copied verbatim.
type Posting struct {
	Index string
	Field string
	Term  string
	DocID string
	Props map[string]any
}

// Entry is one posting record addressed for storage. Subtype and Subterm
// are opaque subkeys set by the caller; Value is the document id.
type Entry struct {
	Index     string
	Field     string
	Term      string
	Subtype   int
	Subterm   int64
	Value     string
	Props     map[string]any
	Timestamp int64
}

// TermInfo is the per-term statistic returned by Info and InfoRange: the
// number of distinct values recorded under the term.
type TermInfo struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// StreamResult is one record emitted by a streaming read.
type StreamResult struct {
	Value string         `json:"value"`
	Props map[string]any `json:"props,omitempty"`
}

// Filter decides whether a streaming read emits a record. A nil Filter
// emits everything.
type Filter func(value string, props map[string]any) bool

// StreamQuery addresses a streaming read: one term, one subtype, and an
// inclusive subterm range.
type StreamQuery struct {
	Index        string
	Field        string
	Term         string
	Subtype      int
	StartSubterm int64
	EndSubterm   int64
	Filter       Filter
}

// Store is the local index store owned by one partition. Implementations
// must be safe for concurrent use; the partition router additionally
// guarantees a single dispatching owner per handle.
type Store interface {
	// Index records one posting entry. Entries with the same
	// (index, field, term, subtype, subterm, value) key are deduplicated,
	// latest timestamp winning.
	Index(ctx context.Context, e Entry) error

	// Stream sends every record matching q to sink, in value order. It
	// returns once all matches are sent or ctx is cancelled. Stream does
	// not close sink.
	Stream(ctx context.Context, q StreamQuery, sink chan<- StreamResult) error

	// Info returns the statistic for one term. A term with no records
	// yields a zero count, not an error.
	Info(ctx context.Context, index, field, term string) (TermInfo, error)

	// InfoRange returns statistics for every term in [startTerm, endTerm]
	// under (index, field), in term order, capped at limit when limit is
	// positive.
	InfoRange(ctx context.Context, index, field, startTerm, endTerm string, limit int) ([]TermInfo, error)

	// IsEmpty reports whether the store holds no records.
	IsEmpty(ctx context.Context) bool

	// Fold applies fn over every stored entry, threading acc through.
	Fold(ctx context.Context, fn func(acc any, e Entry) any, acc any) (any, error)

	// Drop deletes all stored data, in memory and on disk.
	Drop(ctx context.Context) error

	// Close flushes in-memory postings and releases the handle.
	Close() error
}
