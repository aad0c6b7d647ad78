package kb

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/reviewkit/reviewkit/internal/models"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Loader reads guideline documents from a filesystem and splits them into
// overlapping chunks ready for embedding.
type Loader struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewLoader creates a loader with the default chunking parameters.
func NewLoader() *Loader {
	return &Loader{ChunkSize: defaultChunkSize, ChunkOverlap: defaultChunkOverlap}
}

// LoadAndChunk walks fsys for .md files and returns their chunks.
// The category is the containing directory ("general" at the root) and the
// title is the document's first markdown heading.
func (l *Loader) LoadAndChunk(fsys fs.FS) ([]models.Chunk, error) {
	var chunks []models.Chunk

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		meta := models.DocumentMeta{
			Category: categoryFor(p),
			Title:    titleFor(string(data), p),
			Source:   p,
		}
		for i, piece := range l.split(string(data)) {
			chunks = append(chunks, models.Chunk{
				Content: piece,
				Meta:    meta,
				Index:   i,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// categoryFor derives the category from the document's directory.
func categoryFor(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return "general"
	}
	// Use the top-level directory as the category.
	parts := strings.Split(dir, "/")
	return parts[0]
}

// titleFor returns the first markdown heading, or the file name.
func titleFor(content, p string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return strings.TrimSuffix(path.Base(p), ".md")
}

// split cuts content into chunks of roughly ChunkSize characters with
// ChunkOverlap carried between neighbors, preferring paragraph boundaries.
func (l *Loader) split(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= l.ChunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + l.ChunkSize
		if end >= len(content) {
			piece := strings.TrimSpace(content[start:])
			if piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		// Prefer to cut at a paragraph break, then a line break, inside the
		// back half of the window so chunks don't degenerate.
		cut := end
		window := content[start:end]
		if idx := strings.LastIndex(window, "\n\n"); idx > l.ChunkSize/2 {
			cut = start + idx
		} else if idx := strings.LastIndex(window, "\n"); idx > l.ChunkSize/2 {
			cut = start + idx
		}

		piece := strings.TrimSpace(content[start:cut])
		if piece != "" {
			chunks = append(chunks, piece)
		}

		next := cut - l.ChunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
