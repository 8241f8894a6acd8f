package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-ingest/internal/models"
)

func TestEncodeFieldOrder(t *testing.T) {
	records := []models.ChunkRecord{
		{ID: 0, Content: "a < b & c", Metadata: map[string]interface{}{"source": "x.pdf", "page": 0}},
		{ID: 1, Content: "résumé", Metadata: nil},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, records))

	expected := `{"id":0,"content":"a < b & c","metadata":{"page":0,"source":"x.pdf"}}` + "\n" +
		`{"id":1,"content":"résumé","metadata":{}}` + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}
