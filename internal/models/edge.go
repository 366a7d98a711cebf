package models

import "time"

// Edge is a directed link between two segments of the same story.
// Invariants enforced at creation: both endpoints belong to the edge's
// story, source != target, and at most one edge exists per ordered
// (source, target) pair. Edges are never updated after creation.
type Edge struct {
	ID        string    `json:"id" badgerhold:"key"`
	StoryID   string    `json:"story_id" badgerhold:"index"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}
