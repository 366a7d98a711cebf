package models

import "time"

// EmbeddingDim is the fixed embedding vector dimension. Every persisted
// segment carries exactly this many floats, even when the embedding backend
// was down at write time (zero vector).
const EmbeddingDim = 384

// Segment is a unit of story text with its embedding vector. Segments are
// created by the pipeline (initial or turn generation) or edited directly
// by the owner, which triggers an async re-embed.
type Segment struct {
	ID          string    `json:"id" badgerhold:"key"`
	StoryID     string    `json:"story_id" badgerhold:"index"`
	ContentText string    `json:"content_text"`
	Embedding   []float32 `json:"-"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ZeroEmbedding returns a zero vector of the configured dimension.
func ZeroEmbedding() []float32 {
	return make([]float32, EmbeddingDim)
}

// HasZeroEmbedding reports whether the segment's embedding is absent or
// all zeros, i.e. it was persisted while the embedder was degraded.
func (s *Segment) HasZeroEmbedding() bool {
	return IsZeroVector(s.Embedding)
}

// IsZeroVector reports whether a vector is empty or all zeros.
func IsZeroVector(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
