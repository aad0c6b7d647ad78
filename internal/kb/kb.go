// Package kb implements the review knowledge base: guideline documents are
// chunked, embedded, and persisted in SQLite; queries are answered by cosine
// similarity over the stored vectors.
package kb

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"sort"

	"github.com/reviewkit/reviewkit/internal/models"
	"github.com/reviewkit/reviewkit/internal/provider"
)

//go:embed knowledge
var defaultCorpus embed.FS

// DefaultCorpus returns the guideline documents shipped with the binary.
func DefaultCorpus() fs.FS {
	sub, err := fs.Sub(defaultCorpus, "knowledge")
	if err != nil {
		// The embed path is fixed at compile time; this cannot fail.
		panic(err)
	}
	return sub
}

// Stats summarizes the knowledge-base contents.
type Stats struct {
	TotalChunks int            `json:"total_chunks"`
	Categories  map[string]int `json:"categories"`
}

// KnowledgeBase combines the chunk store, the document loader, and an
// embedding client.
type KnowledgeBase struct {
	store    Store
	loader   *Loader
	embedder provider.Embedder
}

// New creates a knowledge base over the given store and embedder.
func New(store Store, embedder provider.Embedder) *KnowledgeBase {
	return &KnowledgeBase{
		store:    store,
		loader:   NewLoader(),
		embedder: embedder,
	}
}

// embedBatchSize bounds how many chunks go to the embedding API per call.
const embedBatchSize = 64

// Ingest loads, chunks, embeds, and stores every document in fsys.
// Returns the number of chunks added.
func (k *KnowledgeBase) Ingest(ctx context.Context, fsys fs.FS) (int, error) {
	chunks, err := k.loader.LoadAndChunk(fsys)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("no documents found for ingestion")
		return 0, nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := k.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		for i := range batch {
			chunks[start+i].Embedding = vectors[i]
		}
	}

	if err := k.store.AddChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	slog.Info("knowledge base ingested", "chunks", len(chunks))
	return len(chunks), nil
}

// Search embeds the query and returns the k most similar chunks, optionally
// restricted to one category. An empty knowledge base yields zero results
// and no error.
func (k *KnowledgeBase) Search(ctx context.Context, query string, limit int, category string) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		limit = 3
	}

	chunks, err := k.store.ListChunks(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := k.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vectors[0]

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, models.ScoredChunk{
			Chunk: c,
			Score: cosineSimilarity(queryVec, c.Embedding),
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Stats returns chunk totals per category.
func (k *KnowledgeBase) Stats(ctx context.Context) (Stats, error) {
	total, err := k.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	categories, err := k.store.CategoryCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalChunks: total, Categories: categories}, nil
}

// Empty reports whether the knowledge base holds no chunks.
func (k *KnowledgeBase) Empty(ctx context.Context) bool {
	n, err := k.store.Count(ctx)
	return err != nil || n == 0
}

// Refresh wipes the store and re-ingests fsys.
func (k *KnowledgeBase) Refresh(ctx context.Context, fsys fs.FS) (int, error) {
	if err := k.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear knowledge base: %w", err)
	}
	return k.Ingest(ctx, fsys)
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either is empty or their lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
