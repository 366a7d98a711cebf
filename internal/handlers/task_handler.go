package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// TaskHandler serves task handle lookups for polling clients.
type TaskHandler struct {
	tasks  interfaces.TaskStorage
	logger arbor.ILogger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(tasks interfaces.TaskStorage, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		logger: logger,
	}
}

// GetTaskHandler handles GET /api/tasks/{id}. A task submitted by another
// owner is indistinguishable from a missing one.
func (h *TaskHandler) GetTaskHandler(w http.ResponseWriter, r *http.Request, taskID string) {
	ownerID := common.OwnerIDFromContext(r.Context())

	task, err := h.tasks.GetTaskForOwner(taskID, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, task)
}
