package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/services/graph"
	"github.com/ternarybob/fabula/internal/services/pipeline"
)

// CreateStoryRequest is the body of POST /api/stories.
type CreateStoryRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	InitialPrompt string `json:"initial_prompt" validate:"required,max=4000"`
}

// StoryHandler handles story-level HTTP requests.
type StoryHandler struct {
	orchestrator *pipeline.Orchestrator
	stories      interfaces.StoryStorage
	graph        *graph.Service
	logger       arbor.ILogger
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(orchestrator *pipeline.Orchestrator, stories interfaces.StoryStorage, graphSvc *graph.Service, logger arbor.ILogger) *StoryHandler {
	return &StoryHandler{
		orchestrator: orchestrator,
		stories:      stories,
		graph:        graphSvc,
		logger:       logger,
	}
}

// CreateStoryHandler handles POST /api/stories. The story record is created
// synchronously; its first segment is generated by a dispatched pipeline,
// so the response is 202 with both the story and the task handle.
func (h *StoryHandler) CreateStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ownerID := common.OwnerIDFromContext(r.Context())

	story, task, err := h.orchestrator.CreateStory(r.Context(), ownerID, req.Title, req.InitialPrompt)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create story")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"story": story,
		"task":  task,
	})
}

// ListStoriesHandler handles GET /api/stories, newest first, scoped to the
// caller.
func (h *StoryHandler) ListStoriesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := common.OwnerIDFromContext(r.Context())

	stories, err := h.stories.ListStoriesByOwner(ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list stories")
		WriteServiceError(w, err)
		return
	}

	if stories == nil {
		stories = []*models.Story{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stories": stories,
		"count":   len(stories),
	})
}

// GetStoryHandler handles GET /api/stories/{id}, returning the story with
// its segments (creation order) and edges nested.
func (h *StoryHandler) GetStoryHandler(w http.ResponseWriter, r *http.Request, storyID string) {
	ownerID := common.OwnerIDFromContext(r.Context())

	story, err := h.stories.GetStoryForOwner(storyID, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	segments, edges, err := h.graph.StoryContents(storyID)
	if err != nil {
		h.logger.Error().Err(err).Str("story_id", storyID).Msg("Failed to load story contents")
		WriteServiceError(w, err)
		return
	}

	if segments == nil {
		segments = []*models.Segment{}
	}
	if edges == nil {
		edges = []*models.Edge{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"story":    story,
		"segments": segments,
		"edges":    edges,
	})
}

// GetGraphHandler handles GET /api/stories/{id}/graph, returning every
// segment and edge of the story for client-side rendering.
func (h *StoryHandler) GetGraphHandler(w http.ResponseWriter, r *http.Request, storyID string) {
	ownerID := common.OwnerIDFromContext(r.Context())

	if _, err := h.stories.GetStoryForOwner(storyID, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}

	storyGraph, err := h.graph.GetGraph(storyID)
	if err != nil {
		h.logger.Error().Err(err).Str("story_id", storyID).Msg("Failed to materialize story graph")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, storyGraph)
}

// DeleteStoryHandler handles DELETE /api/stories/{id}, cascading to the
// story's segments and edges.
func (h *StoryHandler) DeleteStoryHandler(w http.ResponseWriter, r *http.Request, storyID string) {
	ownerID := common.OwnerIDFromContext(r.Context())

	if _, err := h.stories.GetStoryForOwner(storyID, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}

	if err := h.stories.DeleteStory(storyID); err != nil {
		h.logger.Error().Err(err).Str("story_id", storyID).Msg("Failed to delete story")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().Str("story_id", storyID).Msg("Story deleted")
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     storyID,
	})
}
