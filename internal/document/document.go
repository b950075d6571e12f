// Package document defines the structured document model of the indexing
// front-end and its JSON wire codec.
//
// A Document is a value: every mutator returns a new Document and never
// modifies the receiver, so values can be passed between goroutines without
// synchronization. Term positions and facets are derived data, populated by
// the analysis package and empty until analysis has run.
package document

// Field is a named string value. The same type carries raw fields, props,
// and facets.
type Field struct {
	Name  string
	Value string
}

// TermPositions is one term of a field together with the ordered token
// positions (1-based) at which it occurs.
type TermPositions struct {
	Term      string
	Positions []int
}

// FieldTerms is the term-position table derived for one regular field.
type FieldTerms struct {
	Field string
	Terms []TermPositions
}

// Document is an immutable structured document. Use New or NewWithFields to
// construct one; id and index name never change afterwards.
type Document struct {
	id         string
	index      string
	fields     []Field
	props      []Field
	fieldTerms []FieldTerms
	facets     []Field
}

// New creates a Document with the given id and owning index and no fields.
func New(id, index string) Document {
	return Document{id: id, index: index}
}

// NewWithFields creates a Document with the given fields and props. The
// slices are copied; callers keep ownership of their arguments.
func NewWithFields(id, index string, fields, props []Field) Document {
	return Document{
		id:     id,
		index:  index,
		fields: copyFields(fields),
		props:  copyFields(props),
	}
}

// ID returns the document id.
func (d Document) ID() string { return d.id }

// Index returns the name of the owning index.
func (d Document) Index() string { return d.index }

// Fields returns the raw fields, most recently added first. Duplicate names
// are permitted. Callers must not modify the returned slice.
func (d Document) Fields() []Field { return d.fields }

// Props returns the document properties, most recently added first. Callers
// must not modify the returned slice.
func (d Document) Props() []Field { return d.props }

// FieldTerms returns the derived per-field term-position tables. Empty
// until analysis has run.
func (d Document) FieldTerms() []FieldTerms { return d.fieldTerms }

// Facets returns the derived facet fields. Empty until analysis has run.
func (d Document) Facets() []Field { return d.facets }

// AddField returns a copy of d with the field prepended: the most recently
// added field appears first when fields are iterated. Existing fields with
// the same name are kept.
func (d Document) AddField(name, value string) Document {
	fields := make([]Field, 0, len(d.fields)+1)
	fields = append(fields, Field{Name: name, Value: value})
	fields = append(fields, d.fields...)
	d.fields = fields
	return d
}

// AddProp returns a copy of d with the prop prepended.
func (d Document) AddProp(name, value string) Document {
	props := make([]Field, 0, len(d.props)+1)
	props = append(props, Field{Name: name, Value: value})
	props = append(props, d.props...)
	d.props = props
	return d
}

// ClearFields returns a copy of d with no raw fields. The id, index, props,
// and any previously derived term or facet data are preserved; callers that
// re-populate fields must re-run analysis themselves.
func (d Document) ClearFields() Document {
	d.fields = nil
	return d
}

// ClearProps returns a copy of d with no props.
func (d Document) ClearProps() Document {
	d.props = nil
	return d
}

// WithAnalysis returns a copy of d carrying the derived term-position tables
// and facet fields produced by analysis.
func (d Document) WithAnalysis(fieldTerms []FieldTerms, facets []Field) Document {
	d.fieldTerms = fieldTerms
	d.facets = facets
	return d
}

func copyFields(in []Field) []Field {
	if len(in) == 0 {
		return nil
	}
	out := make([]Field, len(in))
	copy(out, in)
	return out
}
