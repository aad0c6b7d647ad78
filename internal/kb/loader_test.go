package kb

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndChunkMetadata(t *testing.T) {
	fsys := fstest.MapFS{
		"security/auth.md": &fstest.MapFile{Data: []byte("# Authentication\n\nCheck tokens.")},
		"notes.md":         &fstest.MapFile{Data: []byte("no heading here")},
		"ignored.txt":      &fstest.MapFile{Data: []byte("not markdown")},
	}

	chunks, err := NewLoader().LoadAndChunk(fsys)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	bySource := map[string]int{}
	for i, c := range chunks {
		bySource[c.Meta.Source] = i
	}

	auth := chunks[bySource["security/auth.md"]]
	assert.Equal(t, "security", auth.Meta.Category)
	assert.Equal(t, "Authentication", auth.Meta.Title)
	assert.Equal(t, 0, auth.Index)

	notes := chunks[bySource["notes.md"]]
	assert.Equal(t, "general", notes.Meta.Category)
	// No heading: fall back to the file name.
	assert.Equal(t, "notes", notes.Meta.Title)
}

func TestSplitShortContent(t *testing.T) {
	l := NewLoader()
	assert.Nil(t, l.split("   \n  "))
	assert.Equal(t, []string{"short doc"}, l.split("short doc"))
}

func TestSplitLongContentOverlaps(t *testing.T) {
	l := &Loader{ChunkSize: 100, ChunkOverlap: 20}

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Paragraph with enough words to matter.\n\n")
	}
	content := strings.TrimSpace(b.String())

	chunks := l.split(content)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), l.ChunkSize, "chunk %d exceeds size", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}

	// Consecutive chunks share overlap text.
	tail := chunks[0][len(chunks[0])-10:]
	assert.Contains(t, content, tail)
}

func TestSplitDeterministic(t *testing.T) {
	l := &Loader{ChunkSize: 80, ChunkOverlap: 15}
	content := strings.Repeat("line of guideline text\n", 30)

	first := l.split(content)
	second := l.split(content)
	assert.Equal(t, first, second)
}

func TestSplitCutsAtParagraphBoundary(t *testing.T) {
	l := &Loader{ChunkSize: 100, ChunkOverlap: 0}
	para := strings.Repeat("x", 70)
	content := para + "\n\n" + para + "\n\n" + para

	chunks := l.split(content)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, para, chunks[0])
}
