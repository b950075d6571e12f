package document

import (
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// wireDocument is the JSON wire shape: an object with string keys "id",
// "index", "fields", and "props", where fields and props are flat
// string-to-string objects.
type wireDocument struct {
	ID     string            `json:"id"`
	Index  string            `json:"index"`
	Fields map[string]string `json:"fields"`
	Props  map[string]string `json:"props"`
}

// Encode serialises d to its wire form. Field names are emitted in sorted
// order (encoding/json sorts map keys), so output is deterministic even
// though in-memory field order is not. When duplicate field names exist, the
// most recently added occurrence wins. Missing fields and props encode as
// empty objects. Derived term and facet data is not part of the wire form.
func Encode(d Document) ([]byte, error) {
	w := wireDocument{
		ID:     d.ID(),
		Index:  d.Index(),
		Fields: make(map[string]string, len(d.Fields())),
		Props:  make(map[string]string, len(d.Props())),
	}
	// Fields iterate most-recent-first, so first occurrence wins.
	for _, f := range d.Fields() {
		if _, exists := w.Fields[f.Name]; !exists {
			w.Fields[f.Name] = f.Value
		}
	}
	for _, p := range d.Props() {
		if _, exists := w.Props[p.Name]; !exists {
			w.Props[p.Name] = p.Value
		}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", d.ID(), err)
	}
	return data, nil
}

// Decode parses a wire document. It fails with ErrMalformedWireFormat when
// the top level is not a JSON object and with ErrMissingIdentity when id or
// index is absent. Malformed fields or props substructures decode to empty
// rather than failing. Field order is restored sorted by name, so only the
// field and prop sets round-trip, not their order.
func Decode(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedWireFormat, err)
	}
	// JSON null unmarshals into a nil map without error.
	if top == nil {
		return Document{}, fmt.Errorf("%w: top-level value is null", apperrors.ErrMalformedWireFormat)
	}

	id := stringAt(top, "id")
	index := stringAt(top, "index")
	if id == "" || index == "" {
		return Document{}, fmt.Errorf("%w: id=%q index=%q", apperrors.ErrMissingIdentity, id, index)
	}

	fields := sortedFields(mapAt(top, "fields"))
	props := sortedFields(mapAt(top, "props"))
	return NewWithFields(id, index, fields, props), nil
}

func stringAt(top map[string]json.RawMessage, key string) string {
	raw, ok := top[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// mapAt decodes a string-to-string object, returning nil for anything that
// does not match that shape.
func mapAt(top map[string]json.RawMessage, key string) map[string]string {
	raw, ok := top[key]
	if !ok {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func sortedFields(m map[string]string) []Field {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, Field{Name: name, Value: m[name]})
	}
	return fields
}
