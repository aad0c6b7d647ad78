package models

// DocumentMeta describes where a knowledge-base chunk came from.
type DocumentMeta struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Source   string `json:"source"`
}

// Chunk is one embedded slice of a knowledge-base document.
// Created at ingestion time and read-only at query time.
type Chunk struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Meta      DocumentMeta `json:"metadata"`
	Index     int          `json:"index"`
	Embedding []float32    `json:"-"`
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk `json:"chunk"`
	Score float64 `json:"score"`
}
