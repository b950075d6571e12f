package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tessera-search/tessera/internal/index/segment"
)

type storeKey struct {
	index string
	field string
	term  string
}

type recordKey struct {
	subtype int
	subterm int64
	value   string
}

// Local is a Store backed by an in-memory posting map that spills to
// immutable segment files once it crosses a size threshold. Segments are
// reloaded when the store is reopened. There is no merge or compaction;
// lookups merge memory and all segments, latest timestamp winning.
type Local struct {
	mu         sync.RWMutex
	path       string
	maxSize    int64
	mem        map[storeKey][]segment.Record
	memRecords int
	memSize    int64
	writer     *segment.Writer
	readers    []*segment.Reader
	logger     *slog.Logger
}

// OpenLocal opens or creates a Local store rooted at path. Any segment
// files already present are loaded. segmentMaxSize is the in-memory size
// threshold that triggers a flush; zero disables automatic flushing.
func OpenLocal(path string, segmentMaxSize int64) (*Local, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	l := &Local{
		path:    path,
		maxSize: segmentMaxSize,
		mem:     make(map[storeKey][]segment.Record),
		writer:  segment.NewWriter(path),
		logger:  slog.Default().With("component", "local-store", "path", path),
	}
	if err := l.loadSegments(); err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	return l, nil
}

// Index records one posting entry, replacing any existing record with the
// same (subtype, subterm, value) key whose timestamp is not newer.
func (l *Local) Index(ctx context.Context, e Entry) error {
	rec := segment.Record{
		Subtype:   e.Subtype,
		Subterm:   e.Subterm,
		Value:     e.Value,
		Props:     e.Props,
		Timestamp: e.Timestamp,
	}
	key := storeKey{index: e.Index, field: e.Field, term: e.Term}

	l.mu.Lock()
	recs := l.mem[key]
	replaced := false
	for i, existing := range recs {
		if existing.Subtype == rec.Subtype && existing.Subterm == rec.Subterm && existing.Value == rec.Value {
			if rec.Timestamp >= existing.Timestamp {
				recs[i] = rec
			}
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
		l.memRecords++
		l.memSize += int64(len(e.Term) + len(e.Value) + 64)
	}
	l.mem[key] = recs

	var flushErr error
	if l.maxSize > 0 && l.memSize >= l.maxSize {
		flushErr = l.flushLocked()
	}
	l.mu.Unlock()

	if flushErr != nil {
		return fmt.Errorf("flushing postings: %w", flushErr)
	}
	return nil
}

// Stream sends every record under the query's term whose subtype matches
// and whose subterm lies in the inclusive range, deduplicated across memory
// and segments and ordered by value.
func (l *Local) Stream(ctx context.Context, q StreamQuery, sink chan<- StreamResult) error {
	key := storeKey{index: q.Index, field: q.Field, term: q.Term}
	l.mu.RLock()
	merged, err := l.collectLocked(key)
	l.mu.RUnlock()
	if err != nil {
		return err
	}

	results := make([]StreamResult, 0, len(merged))
	for rk, rec := range merged {
		if rk.subtype != q.Subtype {
			continue
		}
		if rk.subterm < q.StartSubterm || rk.subterm > q.EndSubterm {
			continue
		}
		if q.Filter != nil && !q.Filter(rec.Value, rec.Props) {
			continue
		}
		results = append(results, StreamResult{Value: rec.Value, Props: rec.Props})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Value < results[j].Value
	})

	for _, r := range results {
		select {
		case sink <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Info returns the number of distinct values recorded under the term.
func (l *Local) Info(ctx context.Context, index, field, term string) (TermInfo, error) {
	key := storeKey{index: index, field: field, term: term}
	l.mu.RLock()
	merged, err := l.collectLocked(key)
	l.mu.RUnlock()
	if err != nil {
		return TermInfo{}, err
	}
	values := make(map[string]struct{}, len(merged))
	for rk := range merged {
		values[rk.value] = struct{}{}
	}
	return TermInfo{Term: term, Count: len(values)}, nil
}

// InfoRange returns statistics for every term in [startTerm, endTerm] under
// (index, field), in term order, capped at limit when positive.
func (l *Local) InfoRange(ctx context.Context, index, field, startTerm, endTerm string, limit int) ([]TermInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	terms := make(map[string]struct{})
	for key := range l.mem {
		if key.index == index && key.field == field && key.term >= startTerm && key.term <= endTerm {
			terms[key.term] = struct{}{}
		}
	}
	for _, reader := range l.readers {
		for _, d := range reader.Dict() {
			if d.Index == index && d.Field == field && d.Term >= startTerm && d.Term <= endTerm {
				terms[d.Term] = struct{}{}
			}
		}
	}

	sorted := make([]string, 0, len(terms))
	for term := range terms {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	infos := make([]TermInfo, 0, len(sorted))
	for _, term := range sorted {
		merged, err := l.collectLocked(storeKey{index: index, field: field, term: term})
		if err != nil {
			return nil, err
		}
		values := make(map[string]struct{}, len(merged))
		for rk := range merged {
			values[rk.value] = struct{}{}
		}
		infos = append(infos, TermInfo{Term: term, Count: len(values)})
	}
	return infos, nil
}

// IsEmpty reports whether the store holds no records.
func (l *Local) IsEmpty(ctx context.Context) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.memRecords > 0 {
		return false
	}
	for _, reader := range l.readers {
		if reader.Records() > 0 {
			return false
		}
	}
	return true
}

// Fold applies fn over every stored entry, segments first, then memory.
// Entries superseded by newer timestamps are still visited; Fold exposes
// the raw store contents.
func (l *Local) Fold(ctx context.Context, fn func(acc any, e Entry) any, acc any) (any, error) {
	l.mu.RLock()
	entries, err := l.allEntriesLocked()
	l.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		acc = fn(acc, e)
	}
	return acc, nil
}

// Drop deletes all stored data, in memory and on disk.
func (l *Local) Drop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mem = make(map[storeKey][]segment.Record)
	l.memRecords = 0
	l.memSize = 0

	var firstErr error
	for _, reader := range l.readers {
		path := reader.Path()
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.readers = nil
	l.logger.Info("store dropped")
	return firstErr
}

// Flush writes the in-memory postings to a new segment file.
func (l *Local) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// Close flushes pending postings and closes all segment readers. The store
// must not be used afterwards.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLocked(); err != nil {
		l.logger.Error("final flush on close failed", "error", err)
	}
	var firstErr error
	for _, reader := range l.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.readers = nil
	return firstErr
}

// collectLocked merges the records for one key across segments (oldest
// first) and memory, latest timestamp winning per (subtype, subterm, value).
// Callers must hold mu.
func (l *Local) collectLocked(key storeKey) (map[recordKey]segment.Record, error) {
	merged := make(map[recordKey]segment.Record)
	absorb := func(recs []segment.Record) {
		for _, rec := range recs {
			rk := recordKey{subtype: rec.Subtype, subterm: rec.Subterm, value: rec.Value}
			if existing, ok := merged[rk]; !ok || rec.Timestamp >= existing.Timestamp {
				merged[rk] = rec
			}
		}
	}
	for _, reader := range l.readers {
		recs, err := reader.Lookup(key.index, key.field, key.term)
		if err != nil {
			return nil, fmt.Errorf("segment lookup: %w", err)
		}
		absorb(recs)
	}
	absorb(l.mem[key])
	return merged, nil
}

// allEntriesLocked snapshots every stored entry. Callers must hold mu.
func (l *Local) allEntriesLocked() ([]Entry, error) {
	var entries []Entry
	for _, reader := range l.readers {
		for _, d := range reader.Dict() {
			recs, err := reader.ReadRecords(d)
			if err != nil {
				return nil, fmt.Errorf("segment read: %w", err)
			}
			for _, rec := range recs {
				entries = append(entries, entryFromRecord(d.Index, d.Field, d.Term, rec))
			}
		}
	}
	for key, recs := range l.mem {
		for _, rec := range recs {
			entries = append(entries, entryFromRecord(key.index, key.field, key.term, rec))
		}
	}
	return entries, nil
}

func entryFromRecord(index, field, term string, rec segment.Record) Entry {
	return Entry{
		Index:     index,
		Field:     field,
		Term:      term,
		Subtype:   rec.Subtype,
		Subterm:   rec.Subterm,
		Value:     rec.Value,
		Props:     rec.Props,
		Timestamp: rec.Timestamp,
	}
}

// flushLocked writes the in-memory postings to a new segment. A store with
// nothing in memory flushes to nothing. Callers must hold mu.
func (l *Local) flushLocked() error {
	if l.memRecords == 0 {
		return nil
	}
	entries := make([]segment.Entry, 0, len(l.mem))
	for key, recs := range l.mem {
		entries = append(entries, segment.Entry{
			Index:   key.index,
			Field:   key.field,
			Term:    key.term,
			Records: recs,
		})
	}
	segmentName, err := l.writer.Write(entries)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(l.path, segmentName))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	l.readers = append(l.readers, reader)
	l.mem = make(map[storeKey][]segment.Record)
	l.logger.Info("segment flushed",
		"segment", segmentName,
		"keys", reader.Keys(),
		"records", l.memRecords,
		"active_segments", len(l.readers),
	)
	l.memRecords = 0
	l.memSize = 0
	return nil
}

func (l *Local) loadSegments() error {
	dirEntries, err := os.ReadDir(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading store directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range dirEntries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.FileSuffix) {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		reader, err := segment.OpenReader(filepath.Join(l.path, name))
		if err != nil {
			l.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		l.readers = append(l.readers, reader)
	}
	if len(l.readers) > 0 {
		l.logger.Info("segment recovery complete", "segments_loaded", len(l.readers))
	}
	return nil
}
