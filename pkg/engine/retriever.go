package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/observability"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

// retrievalResult carries one sub-query's outcome. A failed sub-query is
// recorded and skipped; it never fails the whole pass.
type retrievalResult struct {
	SubQuery api.SubQuery
	Matches  []api.Evidence
	Err      error
}

// retrieveBatch embeds and searches every sub-query in the batch
// concurrently, bounded by the configured concurrency limit. The join
// point selects on ctx, so cancellation returns immediately and abandons
// in-flight retrievals.
func (e *Engine) retrieveBatch(ctx context.Context, batch []api.SubQuery, collections []string, topK int, wider bool) ([]retrievalResult, error) {
	results := make([]retrievalResult, len(batch))
	sem := make(chan struct{}, e.cfg.concurrency())
	var wg sync.WaitGroup

	for i, sq := range batch {
		wg.Add(1)
		go func(idx int, sq api.SubQuery) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = retrievalResult{SubQuery: sq, Err: ctx.Err()}
				return
			}
			matches, err := e.retrieveOne(ctx, sq, collections, topK, wider)
			results[idx] = retrievalResult{SubQuery: sq, Matches: matches, Err: err}
		}(i, sq)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return results, nil
}

// retrieveOne embeds a single sub-query and searches each collection.
// When several collections are searched, topK is split between them.
// A collection missing from the store is skipped, not an error.
func (e *Engine) retrieveOne(ctx context.Context, sq api.SubQuery, collections []string, topK int, wider bool) ([]api.Evidence, error) {
	vectors, err := e.embedder.Embed(ctx, []string{sq.Text})
	if err != nil {
		return nil, fmt.Errorf("embedding sub-query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding sub-query: got %d vectors, want 1", len(vectors))
	}

	perCollection := topK
	if len(collections) > 1 {
		perCollection = topK / len(collections)
		if perCollection < 1 {
			perCollection = 1
		}
	}

	var out []api.Evidence
	for _, col := range collections {
		start := time.Now()
		matches, err := e.store.Search(ctx, col, vectors[0], perCollection, e.cfg.ScoreThreshold)
		observability.RetrievalLatency.WithLabelValues(e.store.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, vectordb.ErrCollectionNotFound) {
				continue
			}
			return nil, fmt.Errorf("searching %s: %w", col, err)
		}
		for _, m := range matches {
			out = append(out, matchEvidence(m, col, sq.Text, wider))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// matchEvidence converts a store match into evidence. The naive path
// prefers the wider context stored alongside a chunk when present.
func matchEvidence(m vectordb.Match, collection, subQuery string, wider bool) api.Evidence {
	text := m.Content
	if wider {
		if wt := m.Metadata["wider_text"]; wt != "" {
			text = wt
		}
	}
	position := 0
	if p := m.Metadata["position"]; p != "" {
		position, _ = strconv.Atoi(p)
	}
	return api.Evidence{
		ChunkID: m.ID,
		Text:    text,
		Source: api.SourceRef{
			Collection: collection,
			Document:   m.Metadata["document"],
			Position:   position,
		},
		Score:    m.Score,
		SubQuery: subQuery,
	}
}
