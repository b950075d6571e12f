package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFieldPrepends(t *testing.T) {
	doc := New("doc1", "products").
		AddField("title", "red shoes").
		AddField("color", "red")

	fields := doc.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, Field{Name: "color", Value: "red"}, fields[0])
	assert.Equal(t, Field{Name: "title", Value: "red shoes"}, fields[1])
}

func TestAddFieldKeepsDuplicates(t *testing.T) {
	doc := New("doc1", "products").
		AddField("tag", "summer").
		AddField("tag", "sale")

	fields := doc.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "sale", fields[0].Value)
	assert.Equal(t, "summer", fields[1].Value)
}

func TestMutatorsDoNotModifyReceiver(t *testing.T) {
	base := New("doc1", "products").AddField("title", "red shoes")

	withMore := base.AddField("color", "red")
	cleared := base.ClearFields()

	assert.Len(t, base.Fields(), 1)
	assert.Len(t, withMore.Fields(), 2)
	assert.Empty(t, cleared.Fields())
}

func TestClearFieldsPreservesDerivedData(t *testing.T) {
	doc := New("doc1", "products").
		AddField("title", "red shoes").
		AddProp("source", "import").
		WithAnalysis(
			[]FieldTerms{{Field: "title", Terms: []TermPositions{{Term: "red", Positions: []int{1}}}}},
			[]Field{{Name: "category", Value: "footwear"}},
		)

	cleared := doc.ClearFields()
	assert.Empty(t, cleared.Fields())
	assert.Equal(t, doc.Props(), cleared.Props())
	assert.Equal(t, doc.FieldTerms(), cleared.FieldTerms())
	assert.Equal(t, doc.Facets(), cleared.Facets())

	noProps := doc.ClearProps()
	assert.Empty(t, noProps.Props())
	assert.Equal(t, doc.Fields(), noProps.Fields())
}

func TestNewWithFieldsCopiesInput(t *testing.T) {
	in := []Field{{Name: "title", Value: "red shoes"}}
	doc := NewWithFields("doc1", "products", in, nil)

	in[0].Value = "mutated"
	assert.Equal(t, "red shoes", doc.Fields()[0].Value)
}

func TestIdentityAccessors(t *testing.T) {
	doc := New("doc1", "products")
	assert.Equal(t, "doc1", doc.ID())
	assert.Equal(t, "products", doc.Index())
	assert.Empty(t, doc.Fields())
	assert.Empty(t, doc.Props())
	assert.Empty(t, doc.FieldTerms())
	assert.Empty(t, doc.Facets())
}
