package docdex

import "context"

// Embedder abstracts the external embedding provider.
//
// Embed returns one vector per input text, same length and order. Model
// identifies the underlying model; build-time and query-time identity are
// compared for equality, so it must be stable across process runs.
type Embedder interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Model returns the model identifier (e.g. "models/text-embedding-004").
	Model() string
	// Name returns the provider name.
	Name() string
}
