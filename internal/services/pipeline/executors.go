package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/services/graph"
)

// deps bundles what every executor needs. Individual executors pick the
// services relevant to their pipeline.
type deps struct {
	tracker   *tracker
	tasks     interfaces.TaskStorage
	stories   interfaces.StoryStorage
	segments  interfaces.SegmentStorage
	graph     *graph.Service
	embedding interfaces.EmbeddingService
	search    interfaces.SearchService
	gen       interfaces.GenerationService
	topK      int
	logger    arbor.ILogger
}

// Executors holds one executor per pipeline type, ready for registration
// with the worker pool.
type Executors struct {
	InitialSegment     *InitialSegmentExecutor
	SegmentGeneration  *TurnExecutor
	RecomputeEmbedding *RecomputeExecutor
	ImageGeneration    *ImageExecutor
}

// NewExecutors wires the four pipeline executors against shared services.
func NewExecutors(storage interfaces.StorageManager, graphSvc *graph.Service, embedding interfaces.EmbeddingService, search interfaces.SearchService, gen interfaces.GenerationService, events interfaces.EventService, topK int, logger arbor.ILogger) *Executors {
	d := &deps{
		tracker:   newTracker(storage.TaskStorage(), events, logger),
		tasks:     storage.TaskStorage(),
		stories:   storage.StoryStorage(),
		segments:  storage.SegmentStorage(),
		graph:     graphSvc,
		embedding: embedding,
		search:    search,
		gen:       gen,
		topK:      topK,
		logger:    logger,
	}

	return &Executors{
		InitialSegment:     &InitialSegmentExecutor{d},
		SegmentGeneration:  &TurnExecutor{d},
		RecomputeEmbedding: &RecomputeExecutor{d},
		ImageGeneration:    &ImageExecutor{d},
	}
}

// InitialSegmentExecutor generates a story's first segment from its initial
// prompt. There is nothing to retrieve yet, so the pipeline skips the
// embedding and retrieval phases and moves straight to generation.
type InitialSegmentExecutor struct {
	d *deps
}

func (e *InitialSegmentExecutor) Execute(ctx context.Context, taskID string, payload []byte) error {
	var p models.InitialSegmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		err = fmt.Errorf("invalid initial segment payload: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	story, err := e.d.stories.GetStory(p.StoryID)
	if err != nil {
		err = fmt.Errorf("story lookup failed: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateGenerating); err != nil {
		return err
	}

	text, err := e.d.gen.GenerateSegment(ctx, "", story.InitialPrompt)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStatePersisting); err != nil {
		return err
	}

	embedding, err := e.d.embedding.EmbedText(ctx, text)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	segment, err := e.d.graph.CreateSegment(story.ID, text, embedding)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tasks.SetTaskResult(taskID, segment.ID, ""); err != nil {
		e.d.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to record task result")
	}
	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateDone); err != nil {
		return err
	}

	e.d.tracker.announceSegment(ctx, taskID, story.ID, segment.ID)
	return nil
}

// TurnExecutor runs the full retrieval-augmented turn pipeline:
// embed the prompt, retrieve similar segments, generate the continuation,
// re-embed the generated text, persist, and link to the parent.
type TurnExecutor struct {
	d *deps
}

func (e *TurnExecutor) Execute(ctx context.Context, taskID string, payload []byte) error {
	var p models.TurnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		err = fmt.Errorf("invalid turn payload: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateEmbedding); err != nil {
		return err
	}

	queryVector, err := e.d.embedding.EmbedText(ctx, p.UserPrompt)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateRetrieving); err != nil {
		return err
	}

	// A zero query vector scores every segment equally; retrieval then
	// degrades to creation-order context rather than nothing at all.
	texts := e.d.search.Search(ctx, p.StoryID, queryVector, e.d.topK)
	contextText := strings.Join(texts, "\n\n")

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateGenerating); err != nil {
		return err
	}

	text, err := e.d.gen.GenerateSegment(ctx, contextText, p.UserPrompt)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStatePersisting); err != nil {
		return err
	}

	// The segment is persisted immediately with the query vector as a
	// provisional embedding, then corrected with an embedding of the
	// generated text. The record is never unembedded, even transiently,
	// and a concurrent turn can already retrieve it between the writes.
	segment, err := e.d.graph.CreateSegment(p.StoryID, text, queryVector)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	contentVector, err := e.d.embedding.EmbedText(ctx, text)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if models.IsZeroVector(contentVector) {
		// Re-embed degraded mid-pipeline. The provisional query vector is
		// still a usable retrieval signal, so keep it rather than erasing
		// it with zeros.
		e.d.logger.Warn().
			Str("segment_id", segment.ID).
			Msg("Content re-embed degraded, keeping provisional query embedding")
	} else {
		if segment, err = e.d.graph.SetSegmentEmbedding(segment.ID, contentVector); err != nil {
			e.d.tracker.fail(ctx, taskID, err)
			return err
		}
	}

	if p.ParentSegmentID != "" {
		if err := e.d.tracker.transition(ctx, taskID, models.TaskStateLinking); err != nil {
			return err
		}

		// Linking is best-effort: the generated segment is already
		// durable, so a rejected edge leaves it unlinked rather than
		// failing the whole pipeline.
		if _, err := e.d.graph.CreateEdge(p.StoryID, p.ParentSegmentID, segment.ID); err != nil {
			e.d.logger.Warn().
				Err(err).
				Str("task_id", taskID).
				Str("parent_id", p.ParentSegmentID).
				Str("segment_id", segment.ID).
				Msg("Failed to link segment to parent, segment persisted unlinked")
		}
	}

	if err := e.d.tasks.SetTaskResult(taskID, segment.ID, ""); err != nil {
		e.d.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to record task result")
	}
	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateDone); err != nil {
		return err
	}

	e.d.tracker.announceSegment(ctx, taskID, p.StoryID, segment.ID)
	return nil
}

// RecomputeExecutor refreshes a segment's embedding from its current text.
// Dispatched after a text edit and by the zero-vector sweep.
type RecomputeExecutor struct {
	d *deps
}

func (e *RecomputeExecutor) Execute(ctx context.Context, taskID string, payload []byte) error {
	var p models.RecomputePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		err = fmt.Errorf("invalid recompute payload: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateEmbedding); err != nil {
		return err
	}

	segment, err := e.d.segments.GetSegment(p.SegmentID)
	if err != nil {
		err = fmt.Errorf("segment lookup failed: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	embedding, err := e.d.embedding.EmbedText(ctx, segment.ContentText)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	// Recompute never writes a degraded result: a zero vector here would
	// replace a usable embedding, so the task fails and the stored vector
	// stays as it was. The sweep retries segments that are still zero.
	if models.IsZeroVector(embedding) {
		err = fmt.Errorf("recompute produced a zero embedding: %w", models.ErrBackendUnavailable)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStatePersisting); err != nil {
		return err
	}

	segment, err = e.d.graph.SetSegmentEmbedding(p.SegmentID, embedding)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tasks.SetTaskResult(taskID, segment.ID, ""); err != nil {
		e.d.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to record task result")
	}
	return e.d.tracker.transition(ctx, taskID, models.TaskStateDone)
}

// ImageExecutor generates an illustration for a segment. Unlike text
// generation there is no placeholder fallback: a failed backend fails the
// task and leaves the segment without an image.
type ImageExecutor struct {
	d *deps
}

func (e *ImageExecutor) Execute(ctx context.Context, taskID string, payload []byte) error {
	var p models.ImagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		err = fmt.Errorf("invalid image payload: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	segment, err := e.d.segments.GetSegment(p.SegmentID)
	if err != nil {
		err = fmt.Errorf("segment lookup failed: %w", err)
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStateGenerating); err != nil {
		return err
	}

	imageURL, err := e.d.gen.GenerateImage(ctx, segment.ContentText, p.Style)
	if err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tracker.transition(ctx, taskID, models.TaskStatePersisting); err != nil {
		return err
	}

	if _, err := e.d.graph.SetSegmentImage(p.SegmentID, imageURL); err != nil {
		e.d.tracker.fail(ctx, taskID, err)
		return err
	}

	if err := e.d.tasks.SetTaskResult(taskID, segment.ID, imageURL); err != nil {
		e.d.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to record task result")
	}
	return e.d.tracker.transition(ctx, taskID, models.TaskStateDone)
}
