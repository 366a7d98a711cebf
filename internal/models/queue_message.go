package models

import (
	"encoding/json"
)

// QueueMessage is the structure stored in the queue.
// Keep it simple - just enough to route the task to an executor.
type QueueMessage struct {
	TaskID  string          `json:"task_id"` // References tasks.id
	Type    string          `json:"type"`    // Task type for executor routing
	Payload json.RawMessage `json:"payload"` // Task-specific data (passed through)
}

// InitialSegmentPayload carries the initial-segment pipeline input.
type InitialSegmentPayload struct {
	StoryID string `json:"story_id"`
}

// TurnPayload carries the turn-generation pipeline input. ParentSegmentID
// is optional; when present the pipeline links parent -> new segment.
type TurnPayload struct {
	StoryID         string `json:"story_id"`
	UserPrompt      string `json:"user_prompt"`
	ParentSegmentID string `json:"parent_segment_id,omitempty"`
}

// RecomputePayload carries the re-embedding pipeline input.
type RecomputePayload struct {
	SegmentID string `json:"segment_id"`
}

// ImagePayload carries the image-generation pipeline input.
type ImagePayload struct {
	SegmentID string `json:"segment_id"`
	Style     string `json:"style,omitempty"`
}
