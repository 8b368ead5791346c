package vectordb

import (
	"context"
	"errors"
	"testing"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	store := NewMemory()

	if err := store.EnsureCollection(ctx, "docs", 2); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}
	points := []Point{
		{ID: "ch_a", Vector: []float32{1, 0}, Content: "about apples", Metadata: map[string]string{"source": "a.md"}},
		{ID: "ch_b", Vector: []float32{0.9, 0.1}, Content: "mostly apples", Metadata: map[string]string{"source": "b.md"}},
		{ID: "ch_c", Vector: []float32{0, 1}, Content: "about oranges", Metadata: map[string]string{"source": "c.md"}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	return store
}

func TestMemorySearchRanksBySimilarity(t *testing.T) {
	store := seedMemory(t)

	matches, err := store.Search(context.Background(), "docs", []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(matches))
	}
	if matches[0].ID != "ch_a" || matches[1].ID != "ch_b" || matches[2].ID != "ch_c" {
		t.Errorf("match order = [%s %s %s], want [ch_a ch_b ch_c]",
			matches[0].ID, matches[1].ID, matches[2].ID)
	}
	if matches[0].Content != "about apples" {
		t.Errorf("Content = %q, want \"about apples\"", matches[0].Content)
	}
	if matches[0].Metadata["source"] != "a.md" {
		t.Errorf("Metadata[source] = %q, want \"a.md\"", matches[0].Metadata["source"])
	}
}

func TestMemorySearchAppliesThreshold(t *testing.T) {
	store := seedMemory(t)

	matches, err := store.Search(context.Background(), "docs", []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	for _, m := range matches {
		if m.Score < 0.5 {
			t.Errorf("match %s score %f below threshold", m.ID, m.Score)
		}
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2 (orthogonal point filtered)", len(matches))
	}
}

func TestMemorySearchLimitsTopK(t *testing.T) {
	store := seedMemory(t)

	matches, err := store.Search(context.Background(), "docs", []float32{1, 0}, 1, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	if matches[0].ID != "ch_a" {
		t.Errorf("best match = %s, want ch_a", matches[0].ID)
	}
}

func TestMemorySearchInvalidArgs(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	if _, err := store.Search(ctx, "docs", nil, 10, 0); err == nil {
		t.Error("Search() with empty vector: error = nil, want error")
	}
	if _, err := store.Search(ctx, "docs", []float32{1, 0}, 0, 0); err == nil {
		t.Error("Search() with topK=0: error = nil, want error")
	}
}

func TestMemoryCollectionNotFound(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.Search(ctx, "missing", []float32{1}, 1, 0)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Search() = %v, want ErrCollectionNotFound", err)
	}
	err = store.Upsert(ctx, "missing", []Point{{ID: "p", Vector: []float32{1}}})
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Upsert() = %v, want ErrCollectionNotFound", err)
	}
	err = store.DeleteCollection(ctx, "missing")
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("DeleteCollection() = %v, want ErrCollectionNotFound", err)
	}
}

func TestMemoryUpsertReplaces(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "docs", []Point{
		{ID: "ch_a", Vector: []float32{1, 0}, Content: "rewritten"},
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	matches, err := store.Search(ctx, "docs", []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("len(matches) = %d, want 3 (replace, not append)", len(matches))
	}
	if matches[0].Content != "rewritten" {
		t.Errorf("Content = %q, want \"rewritten\"", matches[0].Content)
	}
}

func TestMemoryDeleteCollection(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	if err := store.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("DeleteCollection() error: %v", err)
	}
	if _, err := store.Search(ctx, "docs", []float32{1, 0}, 1, 0); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Search() after delete = %v, want ErrCollectionNotFound", err)
	}
}

func TestMemoryNormalizesCollectionNames(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "my docs", 2); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}
	err := store.Upsert(ctx, "my-docs", []Point{{ID: "p", Vector: []float32{1, 0}, Content: "c"}})
	if err != nil {
		t.Fatalf("Upsert() via hyphenated name error: %v", err)
	}
	matches, err := store.Search(ctx, "my_docs", []float32{1, 0}, 1, 0)
	if err != nil {
		t.Fatalf("Search() via underscore name error: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len(matches) = %d, want 1 (all spellings map to one collection)", len(matches))
	}
}
