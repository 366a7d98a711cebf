package interfaces

import "context"

// SearchResult is one scored retrieval hit.
type SearchResult struct {
	SegmentID string
	Content   string
	Score     float64
}

// SearchService runs story-scoped nearest-neighbor retrieval over segment
// embeddings. Retrieval is best-effort context, not critical path: lookup
// failures yield an empty result, never an error to the caller.
type SearchService interface {
	// Search returns up to topK segment texts most similar to the query
	// vector, scoped to storyID, most-similar first. Ordering is stable
	// for identical inputs.
	Search(ctx context.Context, storyID string, queryVector []float32, topK int) []string

	// SearchSegments is Search with scores and IDs, for diagnostics.
	SearchSegments(ctx context.Context, storyID string, queryVector []float32, topK int) []SearchResult
}
