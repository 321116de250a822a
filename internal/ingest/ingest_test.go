package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	got := NewChunker().Split("  Rotate crops to break pest cycles.  ")
	assert.Equal(t, []string{"Rotate crops to break pest cycles."}, got)
	assert.Nil(t, NewChunker().Split(" \n\n "))
}

func TestChunker_PrefersParagraphBoundaries(t *testing.T) {
	c := Chunker{Size: 40, Overlap: 0, Separators: DefaultSeparators}
	text := "Lime raises soil pH.\n\nSulfur lowers soil pH.\n\nTest soil every year."

	got := c.Split(text)
	assert.Equal(t, []string{"Lime raises soil pH.", "Sulfur lowers soil pH.", "Test soil every year."}, got)
}

func TestChunker_BoundsSizeAndOverlaps(t *testing.T) {
	c := Chunker{Size: 50, Overlap: 15, Separators: DefaultSeparators}
	words := strings.Repeat("wheat needs nitrogen early in the season ", 20)

	got := c.Split(words)
	require.Greater(t, len(got), 1)
	for _, chunk := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50, chunk)
	}
	for i := 1; i < len(got); i++ {
		assert.True(t, overlaps(got[i-1], got[i]), "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

// overlaps reports whether next begins with the last words of prev.
func overlaps(prev, next string) bool {
	p, n := strings.Fields(prev), strings.Fields(next)
	for k := 1; k <= len(p) && k <= len(n); k++ {
		if strings.Join(p[len(p)-k:], " ") == strings.Join(n[:k], " ") {
			return true
		}
	}
	return false
}

func TestChunker_HardSplitsUnbrokenText(t *testing.T) {
	c := Chunker{Size: 10, Overlap: 0, Separators: DefaultSeparators}
	got := c.Split(strings.Repeat("x", 25))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, got)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "soil.txt"), []byte("Lime raises pH.\n\nSulfur lowers pH."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("   "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "crops"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crops", "wheat.txt"), []byte("Wheat is a grass."), 0o600))

	docs, err := LoadDir(dir, Chunker{Size: 20, Overlap: 0, Separators: DefaultSeparators})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	bySource := map[string]int{}
	for _, d := range docs {
		bySource[d.Metadata["source"].(string)]++
		assert.NotEmpty(t, d.Metadata["path"])
	}
	assert.Equal(t, map[string]int{"soil.txt": 2, "wheat.txt": 1}, bySource)

	// Files are walked in lexical order, so crops/wheat.txt comes first.
	assert.Equal(t, "wheat.txt", docs[0].Metadata["source"])
	assert.Equal(t, "Lime raises pH.", docs[1].Text)
	assert.Equal(t, 0, docs[1].Metadata["chunk_index"])
	assert.Equal(t, 2, docs[1].Metadata["total_chunks"])
}

func TestLoadDir_MissingDir(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), NewChunker())
	assert.Error(t, err)
}
