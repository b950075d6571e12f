package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

func TestEncodeDecodeRoundTripsFieldSets(t *testing.T) {
	doc := New("doc1", "products").
		AddField("title", "red shoes").
		AddField("color", "red").
		AddProp("source", "import")

	data, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "doc1", decoded.ID())
	assert.Equal(t, "products", decoded.Index())
	// Order is not part of the wire form; fields come back sorted by name.
	assert.Equal(t, []Field{
		{Name: "color", Value: "red"},
		{Name: "title", Value: "red shoes"},
	}, decoded.Fields())
	assert.Equal(t, []Field{{Name: "source", Value: "import"}}, decoded.Props())
}

func TestEncodeIsDeterministic(t *testing.T) {
	doc := New("doc1", "products").
		AddField("b", "2").
		AddField("a", "1").
		AddField("c", "3")

	first, err := Encode(doc)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(doc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeDuplicateFieldNamesLatestWins(t *testing.T) {
	doc := New("doc1", "products").
		AddField("tag", "summer").
		AddField("tag", "sale")

	data, err := Encode(doc)
	require.NoError(t, err)

	var w struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "sale", w.Fields["tag"])
}

func TestEncodeEmptyDocumentHasEmptyObjects(t *testing.T) {
	data, err := Encode(New("doc1", "products"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"doc1","index":"products","fields":{},"props":{}}`, string(data))
}

func TestDecodeNonObjectIsMalformed(t *testing.T) {
	for _, payload := range []string{`[1,2,3]`, `"hello"`, `42`, `null`, `not json`} {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, apperrors.ErrMalformedWireFormat, "payload %q", payload)
	}
}

func TestDecodeMissingIdentity(t *testing.T) {
	cases := map[string]string{
		"no id":        `{"index":"products","fields":{}}`,
		"no index":     `{"id":"doc1","fields":{}}`,
		"empty id":     `{"id":"","index":"products"}`,
		"non-string":   `{"id":7,"index":"products"}`,
		"empty object": `{}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.ErrorIs(t, err, apperrors.ErrMissingIdentity)
		})
	}
}

func TestDecodeLenientOnMalformedSubstructures(t *testing.T) {
	doc, err := Decode([]byte(`{"id":"doc1","index":"products","fields":[1,2],"props":"nope"}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Fields())
	assert.Empty(t, doc.Props())
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	doc, err := Decode([]byte(`{"id":"doc1","index":"products","fields":{"title":"x"},"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, []Field{{Name: "title", Value: "x"}}, doc.Fields())
}
