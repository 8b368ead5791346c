// Package ingest loads documents into the vector store. Local files and
// web pages are split into overlapping chunks, embedded in batches, and
// upserted together with their source metadata; the owning collection is
// registered in the catalog. Long-running ingestions run asynchronously
// and report progress through a task tracker.
package ingest
