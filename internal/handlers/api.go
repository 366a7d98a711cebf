package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// APIHandler serves the system endpoints: health, version, and the JSON
// 404 for unmatched API paths.
type APIHandler struct {
	embedding interfaces.EmbeddingService
	logger    arbor.ILogger
}

func NewAPIHandler(embedding interfaces.EmbeddingService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		embedding: embedding,
		logger:    logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.Version,
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns service health including embedding backend
// reachability. The service stays "ok" with a degraded backend because
// fail_soft keeps the pipelines running.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	embeddingStatus := "ok"
	if !h.embedding.IsAvailable(ctx) {
		embeddingStatus = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"embedding": embeddingStatus,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
