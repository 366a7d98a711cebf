package common

import (
	"github.com/google/uuid"
)

// NewStoryID generates a unique story ID.
// Format: story_<uuid>
func NewStoryID() string {
	return "story_" + uuid.New().String()
}

// NewSegmentID generates a unique segment ID.
// Format: seg_<uuid>
func NewSegmentID() string {
	return "seg_" + uuid.New().String()
}

// NewEdgeID generates a unique edge ID.
// Format: edge_<uuid>
func NewEdgeID() string {
	return "edge_" + uuid.New().String()
}

// NewTaskID generates a unique pipeline task ID.
// Format: task_<uuid>
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewImageName generates a unique image filename.
func NewImageName() string {
	return "img_" + uuid.New().String() + ".png"
}
