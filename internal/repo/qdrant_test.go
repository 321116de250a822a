package repo

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextItem_SplitsTextFromMetadata(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"text":         "Lime raises soil pH.",
		"source":       "soil_guide.txt",
		"chunk_index":  2,
		"total_chunks": 5,
	})

	item, ok := contextItem(payload, 0.75)
	require.True(t, ok)
	assert.Equal(t, "Lime raises soil pH.", item.Text)
	assert.InDelta(t, 0.25, item.Distance, 1e-6)
	assert.Equal(t, "soil_guide.txt", item.Source())
	assert.EqualValues(t, 2, item.Metadata["chunk_index"])
	assert.NotContains(t, item.Metadata, "text")
}

func TestContextItem_SkipsPointsWithoutText(t *testing.T) {
	_, ok := contextItem(qdrant.NewValueMap(map[string]any{"source": "x"}), 0.9)
	assert.False(t, ok)
}

func TestPointID_StablePerChunk(t *testing.T) {
	a := Document{Text: "one", Metadata: map[string]any{"path": "kb/a.txt", "chunk_index": 0}}
	b := Document{Text: "edited", Metadata: map[string]any{"path": "kb/a.txt", "chunk_index": 0}}
	c := Document{Text: "one", Metadata: map[string]any{"path": "kb/a.txt", "chunk_index": 1}}

	assert.Equal(t, PointID(a), PointID(b), "same chunk position keeps its id")
	assert.NotEqual(t, PointID(a), PointID(c))
	assert.Equal(t, PointID(Document{Text: "loose"}), PointID(Document{Text: "loose"}))
}
