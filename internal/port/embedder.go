package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, or an error and no vectors.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension, or 0 if not yet known.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
