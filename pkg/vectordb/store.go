package vectordb

import (
	"context"
	"errors"
	"math"
)

// ErrCollectionNotFound is returned when an operation references a
// collection that does not exist in the store.
var ErrCollectionNotFound = errors.New("vectordb: collection not found")

// Point is a chunk ready for storage: its vector plus the payload needed
// to reconstruct evidence at query time.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Match is a single search result.
type Match struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// Store is the pluggable interface for vector databases.
type Store interface {
	// Name identifies the backend ("qdrant", "sqlite", "memory").
	Name() string

	// EnsureCollection creates the named collection with the given
	// dimensionality if it does not already exist.
	EnsureCollection(ctx context.Context, name string, dims int) error

	// Upsert inserts or replaces points in the named collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to topK nearest neighbors of vector, best first.
	// Results scoring below scoreThreshold are dropped. A threshold of 0
	// disables filtering.
	Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float64) ([]Match, error)

	// DeleteCollection removes the named collection and its points.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases backend resources.
	Close() error
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 when either vector has zero norm or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
