package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/loupelabs/loupe/pkg/api"
)

// Memory is an in-process Store for unit tests and demos.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dims   int
	points map[string]Point
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memoryCollection)}
}

// Name identifies the backend.
func (m *Memory) Name() string { return "memory" }

// EnsureCollection creates the collection if absent.
func (m *Memory) EnsureCollection(_ context.Context, name string, dims int) error {
	name = api.NormalizeCollectionName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memoryCollection{dims: dims, points: make(map[string]Point)}
	}
	return nil
}

// Upsert inserts or replaces points in the named collection.
func (m *Memory) Upsert(_ context.Context, collection string, points []Point) error {
	collection = api.NormalizeCollectionName(collection)

	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		coll.points[p.ID] = p
	}
	return nil
}

// Search brute-force scans the collection and returns the topK points by
// cosine similarity, best first.
func (m *Memory) Search(_ context.Context, collection string, vector []float32, topK int, scoreThreshold float64) ([]Match, error) {
	collection = api.NormalizeCollectionName(collection)
	if len(vector) == 0 || topK <= 0 {
		return nil, fmt.Errorf("vectordb: search requires a non-empty vector and topK > 0")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	var matches []Match
	for _, p := range coll.points {
		score := cosineSimilarity(vector, p.Vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		matches = append(matches, Match{ID: p.ID, Score: score, Content: p.Content, Metadata: p.Metadata})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteCollection removes the collection and its points.
func (m *Memory) DeleteCollection(_ context.Context, name string) error {
	name = api.NormalizeCollectionName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(m.collections, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
