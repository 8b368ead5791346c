package embedding

import (
	"context"
	"time"

	"github.com/loupelabs/loupe/pkg/observability"
)

// Cached wraps an Embedder with a two-tier read-through cache: an
// in-process LRU first, then an optional shared tier (Redis). Hits in the
// shared tier backfill the local one. Only texts missing from both tiers
// are sent upstream.
type Cached struct {
	upstream  Embedder
	local     *LocalLRU
	shared    Cache // nil when no shared tier is configured
	localTTL  time.Duration
	sharedTTL time.Duration
}

var _ Embedder = (*Cached)(nil)

// NewCached creates a caching embedder. shared may be nil.
func NewCached(upstream Embedder, local *LocalLRU, shared Cache, localTTL, sharedTTL time.Duration) *Cached {
	if localTTL <= 0 {
		localTTL = time.Hour
	}
	if sharedTTL <= 0 {
		sharedTTL = 24 * time.Hour
	}
	return &Cached{
		upstream:  upstream,
		local:     local,
		shared:    shared,
		localTTL:  localTTL,
		sharedTTL: sharedTTL,
	}
}

// Embed returns vectors for texts, consulting the cache tiers before the
// upstream embedder. Results preserve input order.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.upstream.Model()
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIndices []int

	for i, text := range texts {
		key := MakeKey(model, text)

		if vec, ok := c.local.Get(ctx, key); ok {
			results[i] = vec
			observability.EmbeddingCacheTotal.WithLabelValues("local", "hit").Inc()
			continue
		}
		observability.EmbeddingCacheTotal.WithLabelValues("local", "miss").Inc()

		if c.shared != nil {
			if vec, ok := c.shared.Get(ctx, key); ok {
				results[i] = vec
				c.local.Set(ctx, key, vec, c.localTTL)
				observability.EmbeddingCacheTotal.WithLabelValues("redis", "hit").Inc()
				continue
			}
			observability.EmbeddingCacheTotal.WithLabelValues("redis", "miss").Inc()
		}

		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.upstream.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, vec := range vectors {
		idx := missIndices[i]
		results[idx] = vec

		key := MakeKey(model, missTexts[i])
		c.local.Set(ctx, key, vec, c.localTTL)
		if c.shared != nil {
			c.shared.Set(ctx, key, vec, c.sharedTTL)
		}
	}

	return results, nil
}

// Dimensions delegates to the upstream embedder.
func (c *Cached) Dimensions() int {
	return c.upstream.Dimensions()
}

// Model delegates to the upstream embedder.
func (c *Cached) Model() string {
	return c.upstream.Model()
}
