package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

const productsYAML = `
index: products
defaultAnalyzer: standard
fields:
  - name: title
    analyzer: whitespace
  - name: category
    facet: true
  - name: description
    analyzerArgs: ["3"]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(productsYAML))
	require.NoError(t, err)
	assert.Equal(t, "products", s.Index)
	assert.Equal(t, "standard", s.DefaultAnalyzer)

	title := s.FindField("title")
	assert.Equal(t, "whitespace", title.Analyzer)
	assert.False(t, title.Facet)

	category := s.FindField("category")
	assert.True(t, category.Facet)

	desc := s.FindField("description")
	assert.Equal(t, "standard", desc.Analyzer)
	assert.Equal(t, []string{"3"}, desc.AnalyzerArgs)
}

func TestParseAppliesDefaultAnalyzer(t *testing.T) {
	s, err := Parse([]byte("index: minimal\nfields:\n  - name: body\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalyzer, s.DefaultAnalyzer)
	assert.Equal(t, DefaultAnalyzer, s.FindField("body").Analyzer)
}

func TestParseRejectsInvalidSchemas(t *testing.T) {
	_, err := Parse([]byte("fields:\n  - name: body\n"))
	assert.Error(t, err, "missing index name")

	_, err = Parse([]byte("index: x\nfields:\n  - facet: true\n"))
	assert.Error(t, err, "unnamed field")

	_, err = Parse([]byte("{not yaml"))
	assert.Error(t, err)
}

func TestFindFieldUnknownGetsDefaults(t *testing.T) {
	s := New("products", "whitespace")
	f := s.FindField("never-configured")
	assert.Equal(t, "whitespace", f.Analyzer)
	assert.False(t, f.Facet)
	assert.False(t, s.IsFieldFacet("never-configured"))
}

func TestDirRegistryLoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.yaml"), []byte(productsYAML), 0o644))

	reg := NewDirRegistry(dir)
	s, err := reg.Schema("products")
	require.NoError(t, err)
	assert.Equal(t, "products", s.Index)

	// Second lookup is served from cache even if the file disappears.
	require.NoError(t, os.Remove(filepath.Join(dir, "products.yaml")))
	again, err := reg.Schema("products")
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestDirRegistryMissingIndex(t *testing.T) {
	reg := NewDirRegistry(t.TempDir())
	_, err := reg.Schema("nope")
	assert.ErrorIs(t, err, apperrors.ErrSchemaNotFound)
}

func TestDirRegistryRejectsMismatchedIndexName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.yaml"), []byte(productsYAML), 0o644))

	reg := NewDirRegistry(dir)
	_, err := reg.Schema("books")
	assert.Error(t, err)
}

func TestStaticRegistry(t *testing.T) {
	reg := NewStaticRegistry(New("books", "whitespace"))

	s, err := reg.Schema("books")
	require.NoError(t, err)
	assert.Equal(t, "books", s.Index)

	_, err = reg.Schema("missing")
	assert.ErrorIs(t, err, apperrors.ErrSchemaNotFound)
}
