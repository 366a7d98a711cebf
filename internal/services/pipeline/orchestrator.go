package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/services/graph"
)

// Orchestrator is the submission side of the async pipeline. Every submit
// method follows the same shape: validate what can be validated
// synchronously, persist a PENDING task handle, enqueue the work, and hand
// the task back to the caller. Nothing here waits on pipeline execution.
type Orchestrator struct {
	stories  interfaces.StoryStorage
	segments interfaces.SegmentStorage
	tasks    interfaces.TaskStorage
	queue    interfaces.QueueManager
	graph    *graph.Service
	tracker  *tracker
	logger   arbor.ILogger
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(storage interfaces.StorageManager, queue interfaces.QueueManager, graphSvc *graph.Service, events interfaces.EventService, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		stories:  storage.StoryStorage(),
		segments: storage.SegmentStorage(),
		tasks:    storage.TaskStorage(),
		queue:    queue,
		graph:    graphSvc,
		tracker:  newTracker(storage.TaskStorage(), events, logger),
		logger:   logger,
	}
}

// CreateStory creates a story and dispatches the initial-segment pipeline.
// The story exists immediately; its first segment arrives asynchronously.
func (o *Orchestrator) CreateStory(ctx context.Context, ownerID, title, initialPrompt string) (*models.Story, *models.Task, error) {
	story := &models.Story{
		ID:            common.NewStoryID(),
		OwnerID:       ownerID,
		Title:         title,
		InitialPrompt: initialPrompt,
	}

	if err := o.stories.SaveStory(story); err != nil {
		return nil, nil, fmt.Errorf("failed to save story: %w", err)
	}

	task := models.NewTask(common.NewTaskID(), ownerID, story.ID, models.TaskTypeInitialSegment)
	if err := o.dispatch(ctx, task, models.InitialSegmentPayload{StoryID: story.ID}); err != nil {
		return nil, nil, err
	}

	o.logger.Info().
		Str("story_id", story.ID).
		Str("task_id", task.ID).
		Msg("Story created, initial segment dispatched")

	return story, task, nil
}

// SubmitTurn dispatches a turn-generation pipeline for a story the caller
// owns. A missing or foreign story is ErrNotFound; a parent segment from a
// different story is a validation error.
func (o *Orchestrator) SubmitTurn(ctx context.Context, ownerID, storyID, userPrompt, parentSegmentID string) (*models.Task, error) {
	if _, err := o.stories.GetStoryForOwner(storyID, ownerID); err != nil {
		return nil, err
	}

	if parentSegmentID != "" {
		if _, err := o.segments.GetSegmentInStory(parentSegmentID, storyID); err != nil {
			return nil, models.NewValidationError("parent_segment_id", "parent segment does not belong to this story")
		}
	}

	task := models.NewTask(common.NewTaskID(), ownerID, storyID, models.TaskTypeSegmentGeneration)
	if err := o.dispatch(ctx, task, models.TurnPayload{
		StoryID:         storyID,
		UserPrompt:      userPrompt,
		ParentSegmentID: parentSegmentID,
	}); err != nil {
		return nil, err
	}

	return task, nil
}

// UpdateSegmentContent replaces a segment's text synchronously and
// dispatches a re-embedding pipeline. Until that pipeline completes, the
// stored embedding describes the old text.
func (o *Orchestrator) UpdateSegmentContent(ctx context.Context, ownerID, segmentID, newText string) (*models.Segment, *models.Task, error) {
	segment, err := o.segments.GetSegment(segmentID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := o.stories.GetStoryForOwner(segment.StoryID, ownerID); err != nil {
		return nil, nil, err
	}

	segment, err = o.graph.UpdateSegmentText(segmentID, newText)
	if err != nil {
		return nil, nil, err
	}

	task := models.NewTask(common.NewTaskID(), ownerID, segment.StoryID, models.TaskTypeRecomputeEmbedding)
	if err := o.dispatch(ctx, task, models.RecomputePayload{SegmentID: segmentID}); err != nil {
		return nil, nil, err
	}

	return segment, task, nil
}

// SubmitImage dispatches an image-generation pipeline for a segment the
// caller owns.
func (o *Orchestrator) SubmitImage(ctx context.Context, ownerID, segmentID, style string) (*models.Task, error) {
	segment, err := o.segments.GetSegment(segmentID)
	if err != nil {
		return nil, err
	}
	if _, err := o.stories.GetStoryForOwner(segment.StoryID, ownerID); err != nil {
		return nil, err
	}

	task := models.NewTask(common.NewTaskID(), ownerID, segment.StoryID, models.TaskTypeImageGeneration)
	if err := o.dispatch(ctx, task, models.ImagePayload{SegmentID: segmentID, Style: style}); err != nil {
		return nil, err
	}

	return task, nil
}

// SubmitRecompute dispatches a re-embedding pipeline without an owner
// check. Used by the background sweep, which acts on the story owner's
// behalf.
func (o *Orchestrator) SubmitRecompute(ctx context.Context, segment *models.Segment) (*models.Task, error) {
	story, err := o.stories.GetStory(segment.StoryID)
	if err != nil {
		return nil, err
	}

	task := models.NewTask(common.NewTaskID(), story.OwnerID, story.ID, models.TaskTypeRecomputeEmbedding)
	if err := o.dispatch(ctx, task, models.RecomputePayload{SegmentID: segment.ID}); err != nil {
		return nil, err
	}

	return task, nil
}

// dispatch persists the task handle, then enqueues the message. If the
// enqueue fails the task is marked FAILED so the handle the caller already
// holds never dangles in PENDING forever.
func (o *Orchestrator) dispatch(ctx context.Context, task *models.Task, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	if err := o.tasks.SaveTask(task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	msg := models.QueueMessage{
		TaskID:  task.ID,
		Type:    string(task.Type),
		Payload: data,
	}

	if err := o.queue.Enqueue(ctx, msg); err != nil {
		o.tracker.fail(ctx, task.ID, fmt.Errorf("failed to enqueue task: %w", err))
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	o.tracker.publish(ctx, task.ID, models.TaskStatePending, "")
	return nil
}
