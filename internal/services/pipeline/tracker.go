package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// tracker persists task state transitions and mirrors each one onto the
// event bus so websocket clients see progress without polling.
type tracker struct {
	tasks  interfaces.TaskStorage
	events interfaces.EventService
	logger arbor.ILogger
}

func newTracker(tasks interfaces.TaskStorage, events interfaces.EventService, logger arbor.ILogger) *tracker {
	return &tracker{tasks: tasks, events: events, logger: logger}
}

// transition moves the task into a new state. The persisted record is the
// source of truth; the event is a best-effort notification.
func (t *tracker) transition(ctx context.Context, taskID string, state models.TaskState) error {
	if err := t.tasks.UpdateTaskState(taskID, state); err != nil {
		return err
	}

	t.logger.Debug().
		Str("task_id", taskID).
		Str("state", string(state)).
		Msg("Task state changed")

	t.publish(ctx, taskID, state, "")
	return nil
}

// fail records a failure on the task and notifies subscribers. The caller
// still returns the original error so the worker pool logs it.
func (t *tracker) fail(ctx context.Context, taskID string, cause error) {
	if err := t.tasks.SetTaskError(taskID, cause.Error()); err != nil {
		t.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to record task error")
	}
	t.publish(ctx, taskID, models.TaskStateFailed, cause.Error())
}

func (t *tracker) publish(ctx context.Context, taskID string, state models.TaskState, errMsg string) {
	payload := map[string]interface{}{
		"task_id": taskID,
		"state":   string(state),
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}

	if err := t.events.Publish(ctx, interfaces.Event{
		Type:      interfaces.EventTaskStateChanged,
		Timestamp: time.Now(),
		Payload:   payload,
	}); err != nil {
		t.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to publish task event")
	}
}

// announceSegment notifies subscribers that a pipeline persisted a segment.
func (t *tracker) announceSegment(ctx context.Context, taskID, storyID, segmentID string) {
	if err := t.events.Publish(ctx, interfaces.Event{
		Type:      interfaces.EventSegmentCreated,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"task_id":    taskID,
			"story_id":   storyID,
			"segment_id": segmentID,
		},
	}); err != nil {
		t.logger.Warn().Err(err).Str("segment_id", segmentID).Msg("Failed to publish segment event")
	}
}
