// Package vectordb abstracts the vector store that holds ingested chunks.
//
// Three backends implement the Store interface:
//   - Qdrant: HTTP client for a running Qdrant server
//   - SQLite: embedded store with in-process cosine scoring
//   - Memory: map-backed store for unit tests and demos
//
// All vector compute for the Qdrant backend (indexing, search) happens
// server-side; the SQLite and memory backends brute-force scan, which
// suits small corpora.
package vectordb
