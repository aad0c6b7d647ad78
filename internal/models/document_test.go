package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoredChunkPromotesChunkFields(t *testing.T) {
	sc := ScoredChunk{
		Chunk: Chunk{
			ID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			Content: "Validate all inputs.",
			Meta:    DocumentMeta{Category: "security", Title: "Input validation", Source: "security/input-validation.md"},
		},
		Score: 0.92,
	}

	// Chunk fields must be reachable directly on the scored result.
	assert.Equal(t, "Validate all inputs.", sc.Content)
	assert.Equal(t, "security", sc.Meta.Category)
	assert.Equal(t, "Input validation", sc.Meta.Title)
}

func TestScoredChunkJSONShape(t *testing.T) {
	sc := ScoredChunk{
		Chunk: Chunk{ID: "id-1", Content: "c"},
		Score: 0.5,
	}

	data, err := json.Marshal(sc)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "chunk")
	assert.Contains(t, out, "score")
}

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
