package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/services/pipeline"
)

// TurnRequest is the body of POST /api/stories/{id}/segments.
type TurnRequest struct {
	UserPrompt      string `json:"user_prompt" validate:"required,max=4000"`
	ParentSegmentID string `json:"parent_segment_id" validate:"omitempty,max=64"`
}

// UpdateSegmentRequest is the body of PUT /api/segments/{id}.
type UpdateSegmentRequest struct {
	ContentText string `json:"content_text" validate:"required"`
}

// ImageRequest is the body of POST /api/segments/{id}/image.
type ImageRequest struct {
	Style string `json:"style" validate:"omitempty,max=100"`
}

// SegmentHandler handles segment-level HTTP requests. Everything here that
// touches an LLM backend is asynchronous: the handler validates, dispatches
// a pipeline, and answers 202 with the task handle.
type SegmentHandler struct {
	orchestrator *pipeline.Orchestrator
	logger       arbor.ILogger
}

// NewSegmentHandler creates a new segment handler.
func NewSegmentHandler(orchestrator *pipeline.Orchestrator, logger arbor.ILogger) *SegmentHandler {
	return &SegmentHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// SubmitTurnHandler handles POST /api/stories/{id}/segments.
func (h *SegmentHandler) SubmitTurnHandler(w http.ResponseWriter, r *http.Request, storyID string) {
	var req TurnRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ownerID := common.OwnerIDFromContext(r.Context())

	task, err := h.orchestrator.SubmitTurn(r.Context(), ownerID, storyID, req.UserPrompt, req.ParentSegmentID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"task": task,
	})
}

// UpdateSegmentHandler handles PUT /api/segments/{id}. The text change is
// applied synchronously; the embedding refresh runs as a dispatched task,
// so the returned segment briefly carries a stale embedding.
func (h *SegmentHandler) UpdateSegmentHandler(w http.ResponseWriter, r *http.Request, segmentID string) {
	var req UpdateSegmentRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ownerID := common.OwnerIDFromContext(r.Context())

	segment, task, err := h.orchestrator.UpdateSegmentContent(r.Context(), ownerID, segmentID, req.ContentText)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"segment": segment,
		"task":    task,
	})
}

// SubmitImageHandler handles POST /api/segments/{id}/image.
func (h *SegmentHandler) SubmitImageHandler(w http.ResponseWriter, r *http.Request, segmentID string) {
	var req ImageRequest
	if r.ContentLength > 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
	}

	ownerID := common.OwnerIDFromContext(r.Context())

	task, err := h.orchestrator.SubmitImage(r.Context(), ownerID, segmentID, req.Style)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"task": task,
	})
}
