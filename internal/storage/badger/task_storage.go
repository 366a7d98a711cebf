package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// TaskStorage implements the TaskStorage interface for Badger
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) SaveTask(task *models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.Store().Get(id, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (s *TaskStorage) GetTaskForOwner(id, ownerID string) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return task, nil
}

func (s *TaskStorage) UpdateTaskState(id string, state models.TaskState) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}

	task.State = state
	task.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}
	return nil
}

func (s *TaskStorage) SetTaskError(id, message string) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}

	task.State = models.TaskStateFailed
	task.Error = message
	task.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to set task error: %w", err)
	}
	return nil
}

func (s *TaskStorage) SetTaskResult(id, segmentID, imageURL string) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}

	if segmentID != "" {
		task.ResultSegmentID = segmentID
	}
	if imageURL != "" {
		task.ResultImageURL = imageURL
	}
	task.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to set task result: %w", err)
	}
	return nil
}
