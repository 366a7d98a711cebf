package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Generated images
	mux.Handle("/media/images/", http.StripPrefix("/media/images/",
		http.FileServer(http.Dir(s.app.Config.Storage.Filesystem.Images))))

	// API routes - Stories
	mux.HandleFunc("/api/stories", s.handleStoriesRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/stories/", s.handleStoryRoutes) // /{id}, /{id}/graph, /{id}/segments

	// API routes - Segments
	mux.HandleFunc("/api/segments/", s.handleSegmentRoutes) // /{id}, /{id}/image

	// API routes - Tasks
	mux.HandleFunc("/api/tasks/", s.handleTaskRoutes) // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

func (s *Server) handleStoriesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.StoryHandler.ListStoriesHandler(w, r)
	case http.MethodPost:
		s.app.StoryHandler.CreateStoryHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStoryRoutes dispatches /api/stories/{id} and its subresources.
func (s *Server) handleStoryRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/stories/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}
	storyID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.app.StoryHandler.GetStoryHandler(w, r, storyID)
		case http.MethodDelete:
			s.app.StoryHandler.DeleteStoryHandler(w, r, storyID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "graph" && r.Method == http.MethodGet:
		s.app.StoryHandler.GetGraphHandler(w, r, storyID)
	case len(parts) == 2 && parts[1] == "segments" && r.Method == http.MethodPost:
		s.app.SegmentHandler.SubmitTurnHandler(w, r, storyID)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleSegmentRoutes dispatches /api/segments/{id} and /{id}/image.
func (s *Server) handleSegmentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/segments/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}
	segmentID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		s.app.SegmentHandler.UpdateSegmentHandler(w, r, segmentID)
	case len(parts) == 2 && parts[1] == "image" && r.Method == http.MethodPost:
		s.app.SegmentHandler.SubmitImageHandler(w, r, segmentID)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleTaskRoutes dispatches GET /api/tasks/{id}.
func (s *Server) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.app.TaskHandler.GetTaskHandler(w, r, taskID)
}
