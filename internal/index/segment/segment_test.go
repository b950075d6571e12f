package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLookup(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Index: "books", Field: "title", Term: "dog", Records: []Record{
			{Value: "doc2", Timestamp: 2},
		}},
		{Index: "books", Field: "title", Term: "cat", Records: []Record{
			{Value: "doc1", Props: map[string]any{"freq": float64(3)}, Timestamp: 1},
			{Subterm: 7, Value: "doc2", Timestamp: 2},
		}},
	}

	name, err := NewWriter(dir).Write(entries)
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Keys())
	assert.Equal(t, 3, r.Records())

	recs, err := r.Lookup("books", "title", "cat")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "doc1", recs[0].Value)
	assert.Equal(t, float64(3), recs[0].Props["freq"])
	assert.Equal(t, int64(7), recs[1].Subterm)

	missing, err := r.Lookup("books", "title", "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDictIsSortedByKey(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Index: "b", Field: "f", Term: "z", Records: []Record{{Value: "x"}}},
		{Index: "a", Field: "f", Term: "m", Records: []Record{{Value: "x"}}},
		{Index: "a", Field: "f", Term: "a", Records: []Record{{Value: "x"}}},
	}
	name, err := NewWriter(dir).Write(entries)
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	dict := r.Dict()
	require.Len(t, dict, 3)
	for i := 1; i < len(dict); i++ {
		assert.True(t, dict[i-1].Less(dict[i]))
	}
}

func TestWriteEmptyFails(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(nil)
	assert.Error(t, err)
}

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus"+FileSuffix)
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0o644))

	_, err := OpenReader(path)
	assert.ErrorContains(t, err, "magic")
}

func TestOpenReaderRejectsCorruptDictionary(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write([]Entry{
		{Index: "books", Field: "title", Term: "cat", Records: []Record{{Value: "doc1"}}},
	})
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte inside the dictionary region.
	data[len(data)-FooterSize-2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "checksum")
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write([]Entry{
		{Index: "books", Field: "title", Term: "cat", Records: []Record{{Value: "doc1"}}},
	})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
