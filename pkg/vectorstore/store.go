// Package vectorstore holds similarity stores for indexed content chunks.
package vectorstore

import (
	"context"
	"math"
)

type Record struct {
	ChunkID   string
	SourceKey string
	Index     int
	Text      string
	Embedding []float32
}

type Match struct {
	ChunkID   string
	SourceKey string
	Index     int
	Text      string
	Score     float64
}

// Store indexes chunk embeddings per collection.
type Store interface {
	// Index replaces every record previously stored for sourceKey in
	// collection with records.
	Index(ctx context.Context, collection, sourceKey string, records []Record) error
	// Query returns up to k records by descending cosine similarity.
	Query(ctx context.Context, collection string, embedding []float32, k int) ([]Match, error)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
