// Package embedding converts text into vectors via an OpenAI-compatible
// embeddings endpoint.
//
// The package provides:
//   - Embedder: the interface retrieval and ingestion embed through
//   - OpenAIEmbedder: a batched client for /v1/embeddings endpoints
//   - Cached: a two-tier read-through cache (in-process LRU, optional Redis)
//
// Embedding failures carry the same transient/fatal classification as
// completion provider failures, so callers can apply one retry policy to
// both.
package embedding
