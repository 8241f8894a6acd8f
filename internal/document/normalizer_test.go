package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"collapse", "a  b\t\tc\n\nd", "a b c d"},
		{"trim", "  \n hello world \r\n", "hello world"},
		{"unicode spaces", "a\u00a0\u00a0b\u2003c", "a b c"},
		{"only whitespace", " \t\n ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestCleanKeepsMetadataAndCount(t *testing.T) {
	meta := map[string]interface{}{"source": "a.pdf", "page": 3}
	in := []Segment{
		{Content: "  first\n\npage ", Metadata: meta},
		{Content: "   ", Metadata: map[string]interface{}{"source": "a.pdf", "page": 4}},
	}

	out := Clean(in)
	assert.Len(t, out, 2, "段数不变")
	assert.Equal(t, "first page", out[0].Content)
	assert.Equal(t, meta, out[0].Metadata)
	assert.Equal(t, "", out[1].Content)
}

func TestCleanIdempotent(t *testing.T) {
	in := []Segment{{Content: "x \n\n y\t z", Metadata: map[string]interface{}{}}}
	once := Clean(in)
	twice := Clean(once)
	assert.Equal(t, once, twice)
}
