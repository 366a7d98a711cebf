package models

import "time"

// TaskType identifies the pipeline executed for a task.
type TaskType string

const (
	TaskTypeInitialSegment     TaskType = "initial_segment"
	TaskTypeSegmentGeneration  TaskType = "segment_generation"
	TaskTypeRecomputeEmbedding TaskType = "recompute_embedding"
	TaskTypeImageGeneration    TaskType = "image_generation"
)

// TaskState is a pipeline state machine state. A generation task moves
// PENDING -> EMBEDDING -> RETRIEVING -> GENERATING -> PERSISTING ->
// LINKING -> DONE, or to FAILED from any state. Simpler task types skip
// the states they have no work for.
type TaskState string

const (
	TaskStatePending    TaskState = "pending"
	TaskStateEmbedding  TaskState = "embedding"
	TaskStateRetrieving TaskState = "retrieving"
	TaskStateGenerating TaskState = "generating"
	TaskStatePersisting TaskState = "persisting"
	TaskStateLinking    TaskState = "linking"
	TaskStateDone       TaskState = "done"
	TaskStateFailed     TaskState = "failed"
)

// Terminal reports whether the state ends the task lifecycle.
func (s TaskState) Terminal() bool {
	return s == TaskStateDone || s == TaskStateFailed
}

// Task is the trackable handle for one asynchronous pipeline run. Submission
// endpoints return its ID immediately; clients poll GET /api/tasks/{id} or
// subscribe to /ws for state changes. Failures inside a dispatched task are
// captured here, never surfaced on the original HTTP response.
type Task struct {
	ID              string    `json:"id" badgerhold:"key"`
	OwnerID         string    `json:"-" badgerhold:"index"`
	StoryID         string    `json:"story_id" badgerhold:"index"`
	Type            TaskType  `json:"type"`
	State           TaskState `json:"state"`
	Error           string    `json:"error,omitempty"`
	ResultSegmentID string    `json:"result_segment_id,omitempty"`
	ResultImageURL  string    `json:"result_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewTask creates a pending task.
func NewTask(id, ownerID, storyID string, taskType TaskType) *Task {
	now := time.Now()
	return &Task{
		ID:        id,
		OwnerID:   ownerID,
		StoryID:   storyID,
		Type:      taskType,
		State:     TaskStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
