package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
	"github.com/loupelabs/loupe/pkg/debug"
	"github.com/loupelabs/loupe/pkg/embedding"
	"github.com/loupelabs/loupe/pkg/observability"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

const defaultEmbedBatch = 256

// PipelineConfig holds the ingestion knobs.
type PipelineConfig struct {
	// ChunkSize and ChunkOverlap configure the splitter, in runes.
	ChunkSize    int
	ChunkOverlap int

	// EmbedBatchSize is how many chunks are embedded per request.
	// Defaults to 256.
	EmbedBatchSize int
}

// Pipeline drives ingestion end to end: load, split, embed, store, and
// register the collection in the catalog.
type Pipeline struct {
	embedder  embedding.Embedder
	store     vectordb.Store
	catalog   catalog.Catalog
	splitter  *Splitter
	web       *WebLoader
	batchSize int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(emb embedding.Embedder, store vectordb.Store, cat catalog.Catalog, cfg PipelineConfig) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("ingest: catalog must not be nil")
	}
	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = defaultEmbedBatch
	}
	return &Pipeline{
		embedder:  emb,
		store:     store,
		catalog:   cat,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		web:       NewWebLoader(0),
		batchSize: batch,
	}, nil
}

// IngestFiles loads the given files or directories into the collection.
// Paths that fail to load are skipped with a warning; the ingestion fails
// only when nothing could be loaded. Returns the number of chunks stored.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, collection, description string) (int, error) {
	var docs []Document
	for _, path := range paths {
		loaded, err := LoadPath(path)
		if err != nil {
			slog.Warn("skipping path", "path", path, "error", err)
			continue
		}
		docs = append(docs, loaded...)
	}
	return p.ingest(ctx, docs, collection, description)
}

// IngestWeb fetches the given URLs into the collection. URLs that fail are
// skipped with a warning. Returns the number of chunks stored.
func (p *Pipeline) IngestWeb(ctx context.Context, urls []string, collection, description string) (int, error) {
	var docs []Document
	for _, u := range urls {
		doc, err := p.web.Load(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			slog.Warn("skipping url", "url", u, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return p.ingest(ctx, docs, collection, description)
}

func (p *Pipeline) ingest(ctx context.Context, docs []Document, collection, description string) (int, error) {
	collection = api.NormalizeCollectionName(collection)
	if collection == "" {
		return 0, fmt.Errorf("ingest: collection is required")
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("ingest: no loadable documents")
	}

	var chunks []Chunk
	for _, doc := range docs {
		split := p.splitter.Split(doc)
		debug.Log("ingest", "document split", "document", doc.Reference, "chunks", len(split))
		chunks = append(chunks, split...)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingest: documents produced no chunks")
	}

	ensured := false
	total := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("ingest: embedding chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return total, fmt.Errorf("ingest: got %d vectors for %d chunks", len(vectors), len(batch))
		}

		if !ensured {
			if err := p.store.EnsureCollection(ctx, collection, len(vectors[0])); err != nil {
				return total, fmt.Errorf("ingest: creating collection %s: %w", collection, err)
			}
			if err := p.catalog.Upsert(ctx, catalog.Collection{Name: collection, Description: description}); err != nil {
				return total, fmt.Errorf("ingest: registering collection %s: %w", collection, err)
			}
			ensured = true
		}

		points := make([]vectordb.Point, len(batch))
		for i, ch := range batch {
			points[i] = vectordb.Point{
				ID:      chunkID(ch.Reference, ch.Position),
				Vector:  vectors[i],
				Content: ch.Text,
				Metadata: map[string]string{
					"document":   ch.Reference,
					"position":   strconv.Itoa(ch.Position),
					"wider_text": ch.WiderText,
				},
			}
		}
		if err := p.store.Upsert(ctx, collection, points); err != nil {
			return total, fmt.Errorf("ingest: storing chunks: %w", err)
		}
		total += len(points)
		observability.IngestChunksTotal.Add(float64(len(points)))
	}

	slog.Info("ingestion complete",
		"collection", collection,
		"documents", len(docs),
		"chunks", total)
	return total, nil
}

// chunkID derives a stable id from the chunk's source, so re-ingesting a
// document replaces its chunks instead of duplicating them.
func chunkID(reference string, position int) string {
	sum := sha256.Sum256([]byte(reference + "#" + strconv.Itoa(position)))
	return "ch_" + hex.EncodeToString(sum[:])[:24]
}
