package embedding

import "context"

// Embedder converts batches of text into embedding vectors.
type Embedder interface {
	// Embed converts a batch of text strings into embedding vectors.
	// The result has one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of the embedding vectors.
	// Returns 0 until known (configured or learned from a response).
	Dimensions() int

	// Model returns the embedding model name.
	Model() string
}
