package domain

import (
	"context"
	"time"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingRecord is the stored vector for one entity under one model.
// Vectors of different ModelID are never compared; similarity queries
// filter to the active model and treat legacy vectors as absent.
type EmbeddingRecord struct {
	EntityID    string
	EntityType  string
	Vector      []float32
	ModelID     string
	GeneratedAt time.Time
}

// RankedEntity is one semantically scored search hit.
type RankedEntity struct {
	ID         string
	Similarity float64
}

// EntityRef identifies an entity whose vector needs (re)computation.
type EntityRef struct {
	ID   string
	Type string
}
