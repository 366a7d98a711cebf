package interfaces

import "context"

// EmbeddingService turns text into fixed-dimension vectors for storage and
// retrieval. Under the fail_soft policy a degraded backend yields a zero
// vector of the correct dimension instead of an error, keeping downstream
// pipeline steps structurally valid at the cost of retrieval quality.
type EmbeddingService interface {
	// EmbedText returns a vector of exactly Dimension() floats for any
	// input, including the empty string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// IsAvailable checks whether the embedding backend is reachable.
	IsAvailable(ctx context.Context) bool
}
