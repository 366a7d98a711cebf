package interfaces

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/ternarybob/fabula/internal/models"
)

// StoryStorage persists stories.
type StoryStorage interface {
	SaveStory(story *models.Story) error
	GetStory(id string) (*models.Story, error)
	// GetStoryForOwner returns ErrNotFound for both missing stories and
	// stories owned by someone else.
	GetStoryForOwner(id, ownerID string) (*models.Story, error)
	ListStoriesByOwner(ownerID string) ([]*models.Story, error)
	// DeleteStory removes the story and cascades to its segments and edges.
	DeleteStory(id string) error
}

// SegmentStorage persists segments.
type SegmentStorage interface {
	SaveSegment(segment *models.Segment) error
	GetSegment(id string) (*models.Segment, error)
	// GetSegmentInStory returns ErrNotFound when the segment does not exist
	// or belongs to a different story.
	GetSegmentInStory(id, storyID string) (*models.Segment, error)
	// ListSegmentsByStory returns segments ordered by creation time.
	ListSegmentsByStory(storyID string) ([]*models.Segment, error)
	// DeleteSegment removes the segment and cascades edges touching it.
	DeleteSegment(id string) error
	// ListZeroEmbeddingSegments returns up to limit segments persisted with
	// a zero vector, for the background re-embedding sweep.
	ListZeroEmbeddingSegments(limit int) ([]*models.Segment, error)
}

// EdgeStorage persists edges.
type EdgeStorage interface {
	SaveEdge(edge *models.Edge) error
	ListEdgesByStory(storyID string) ([]*models.Edge, error)
	EdgeExists(sourceID, targetID string) (bool, error)
	DeleteEdgesForSegment(segmentID string) error
	DeleteEdgesForStory(storyID string) error
}

// TaskStorage persists pipeline task handles.
type TaskStorage interface {
	SaveTask(task *models.Task) error
	GetTask(id string) (*models.Task, error)
	GetTaskForOwner(id, ownerID string) (*models.Task, error)
	UpdateTaskState(id string, state models.TaskState) error
	SetTaskError(id, message string) error
	SetTaskResult(id, segmentID, imageURL string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	StoryStorage() StoryStorage
	SegmentStorage() SegmentStorage
	EdgeStorage() EdgeStorage
	TaskStorage() TaskStorage

	// Badger exposes the raw badger DB for the queue, which manages its own
	// key layout outside badgerhold.
	Badger() *badger.DB

	Close() error
}
