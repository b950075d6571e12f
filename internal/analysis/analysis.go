// Package analysis turns a document's raw field values into per-field
// term-position tables and flat posting records.
//
// Analysis is deterministic and idempotent: the same document and schema
// always produce the same tables. Token positions are 1-based and appended
// in token-scan order, so each term's position list is ascending.
package analysis

import (
	"fmt"

	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/internal/index"
	"github.com/tessera-search/tessera/internal/schema"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// Analyze derives term positions and facets for doc. Fields the schema
// marks as facets keep their raw values; all other fields are run through
// their configured analyzer. Both partitions preserve the relative order of
// the document's field list. Analysis is all-or-nothing: any schema or
// analyzer failure returns the error and no partial result.
func Analyze(doc document.Document, registry schema.Registry, analyzers Analyzers) (document.Document, error) {
	sch, err := registry.Schema(doc.Index())
	if err != nil {
		return document.Document{}, fmt.Errorf("analyzing document %s: %w", doc.ID(), err)
	}

	var facets []document.Field
	var fieldTerms []document.FieldTerms
	for _, f := range doc.Fields() {
		cfg := sch.FindField(f.Name)
		if cfg.Facet {
			facets = append(facets, f)
			continue
		}
		tokens, err := analyzers.Analyze(f.Value, cfg.Analyzer, cfg.AnalyzerArgs)
		if err != nil {
			return document.Document{}, fmt.Errorf("analyzing field %q of document %s: %w", f.Name, doc.ID(), err)
		}
		fieldTerms = append(fieldTerms, document.FieldTerms{
			Field: f.Name,
			Terms: termPositions(tokens),
		})
	}
	return doc.WithAnalysis(fieldTerms, facets), nil
}

// termPositions builds a term-position table from a token sequence. Tokens
// are scanned in order starting at position 1; terms appear in
// first-occurrence order and each term's positions are appended at the
// tail, yielding ascending position lists. Position counting restarts for
// every field, including duplicate-named fields, which are processed as
// independent entries.
func termPositions(tokens []string) []document.TermPositions {
	table := make([]document.TermPositions, 0, len(tokens))
	byTerm := make(map[string]int, len(tokens))
	for i, token := range tokens {
		pos := i + 1
		if at, ok := byTerm[token]; ok {
			table[at].Positions = append(table[at].Positions, pos)
			continue
		}
		byTerm[token] = len(table)
		table = append(table, document.TermPositions{
			Term:      token,
			Positions: []int{pos},
		})
	}
	return table
}

// Postings flattens an analyzed document into posting records: one per
// (field, distinct term) pair, in field order then first-occurrence term
// order. The same term in two fields yields two postings. Every posting
// carries word_pos, freq, and the document's facet fields verbatim.
func Postings(doc document.Document) []index.Posting {
	var postings []index.Posting
	for _, ft := range doc.FieldTerms() {
		for _, tp := range ft.Terms {
			props := make(map[string]any, 2+len(doc.Facets()))
			props["word_pos"] = tp.Positions
			props["freq"] = len(tp.Positions)
			for _, facet := range doc.Facets() {
				props[facet.Name] = facet.Value
			}
			postings = append(postings, index.Posting{
				Index: doc.Index(),
				Field: ft.Field,
				Term:  tp.Term,
				DocID: doc.ID(),
				Props: props,
			})
		}
	}
	return postings
}

// unknownAnalyzerError wraps ErrAnalyzer for factories no analyzer set
// provides.
func unknownAnalyzerError(factory string) error {
	return fmt.Errorf("%w: unknown analyzer factory %q", apperrors.ErrAnalyzer, factory)
}
