package search

import (
	"context"
	"math"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

// Service implements SearchService with cosine similarity over the
// embeddings persisted for one story. Story scoping happens at the storage
// query, so a search can never surface another story's segments.
//
// Retrieval is best-effort: any storage failure is logged and yields an
// empty result rather than failing the pipeline.
type Service struct {
	segments interfaces.SegmentStorage
	logger   arbor.ILogger
}

// NewService creates a new search service.
func NewService(segments interfaces.SegmentStorage, logger arbor.ILogger) interfaces.SearchService {
	return &Service{
		segments: segments,
		logger:   logger,
	}
}

// Search returns up to topK segment texts most similar to the query vector.
func (s *Service) Search(ctx context.Context, storyID string, queryVector []float32, topK int) []string {
	results := s.SearchSegments(ctx, storyID, queryVector, topK)

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Content)
	}
	return texts
}

// SearchSegments returns scored hits, most-similar first. Ties break on
// segment creation order then ID, so identical inputs always produce the
// same ordering.
func (s *Service) SearchSegments(ctx context.Context, storyID string, queryVector []float32, topK int) []interfaces.SearchResult {
	if topK <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return nil
	}

	segments, err := s.segments.ListSegmentsByStory(storyID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("story_id", storyID).
			Msg("Vector search failed, returning empty result")
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}

	hits := make([]scored, 0, len(segments))
	for i, seg := range segments {
		score := CosineSimilarity(queryVector, seg.Embedding)
		hits = append(hits, scored{idx: i, score: score})
	}

	// ListSegmentsByStory is already creation-ordered, so index order is
	// the deterministic tie-break.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]interfaces.SearchResult, 0, len(hits))
	for _, h := range hits {
		seg := segments[h.idx]
		results = append(results, interfaces.SearchResult{
			SegmentID: seg.ID,
			Content:   seg.ContentText,
			Score:     h.score,
		})
	}

	return results
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or a zero-norm vector score 0, ranking degraded
// (zero-embedded) segments below every real match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
