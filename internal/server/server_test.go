package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/app"
	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/models"
)

const (
	tokenAlice = "token-alice"
	tokenBob   = "token-bob"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := common.DefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "server-test.db")
	cfg.Storage.Filesystem.Images = t.TempDir()
	cfg.Queue.PollInterval = "10ms"
	cfg.Sweep.Enabled = false
	cfg.Auth.Enabled = true
	cfg.Auth.Tokens = map[string]string{
		tokenAlice: "owner-alice",
		tokenBob:   "owner-bob",
	}

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	require.NoError(t, application.Start())

	srv := New(application)
	ts := httptest.NewServer(srv.withConditionalMiddleware(srv.router))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	if resp.Header.Get("Content-Type") == "application/json" {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func pollTask(t *testing.T, ts *httptest.Server, token, taskID string) *models.Task {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.DefaultClient.Do(mustRequest(t, ts, http.MethodGet, "/api/tasks/"+taskID, token))
		require.NoError(t, err)

		var task models.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
		resp.Body.Close()

		if task.State.Terminal() {
			return &task
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("Task %s did not finish", taskID)
	return nil
}

func mustRequest(t *testing.T, ts *httptest.Server, method, path, token string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealthAndVersionAreOpen(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body["status"]), "ok")

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/version", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/stories", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/stories", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStoryLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	// Create: 202 with story and task handle.
	resp, body := doJSON(t, ts, http.MethodPost, "/api/stories", tokenAlice, map[string]string{
		"title":          "The Lighthouse",
		"initial_prompt": "A keeper finds a strange door.",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var story models.Story
	require.NoError(t, json.Unmarshal(body["story"], &story))
	var task models.Task
	require.NoError(t, json.Unmarshal(body["task"], &task))
	require.NotEmpty(t, story.ID)
	require.NotEmpty(t, task.ID)

	// The initial segment arrives asynchronously.
	done := pollTask(t, ts, tokenAlice, task.ID)
	require.Equal(t, models.TaskStateDone, done.State)
	require.NotEmpty(t, done.ResultSegmentID)

	// Graph shows the one generated node.
	resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/stories/%s/graph", story.ID), tokenAlice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A turn extends the graph and links to the parent.
	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/stories/%s/segments", story.ID), tokenAlice, map[string]string{
		"user_prompt":       "The keeper opens the door.",
		"parent_segment_id": done.ResultSegmentID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body["task"], &task))

	turnDone := pollTask(t, ts, tokenAlice, task.ID)
	require.Equal(t, models.TaskStateDone, turnDone.State)

	var graph models.Graph
	resp2, err := http.DefaultClient.Do(mustRequest(t, ts, http.MethodGet, fmt.Sprintf("/api/stories/%s/graph", story.ID), tokenAlice))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&graph))
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)

	// Story detail nests the segments and edges.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/stories/"+story.ID, tokenAlice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var segments []models.Segment
	require.NoError(t, json.Unmarshal(body["segments"], &segments))
	var edges []models.Edge
	require.NoError(t, json.Unmarshal(body["edges"], &edges))
	require.Len(t, segments, 2)
	require.Len(t, edges, 1)

	// Delete cascades.
	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/stories/"+story.ID, tokenAlice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/stories/"+story.ID, tokenAlice, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCrossOwnerIsolation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/stories", tokenAlice, map[string]string{
		"title":          "Private",
		"initial_prompt": "Secret beginnings.",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var story models.Story
	require.NoError(t, json.Unmarshal(body["story"], &story))
	var task models.Task
	require.NoError(t, json.Unmarshal(body["task"], &task))

	// Bob cannot see Alice's story, task, or graph; all read as 404.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/stories/"+story.ID, tokenBob, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/tasks/"+task.ID, tokenBob, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/stories/%s/graph", story.ID), tokenBob, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Bob's list is empty, Alice's has one.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/stories", tokenBob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "0", string(body["count"]))
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	// Missing title.
	resp, _ := doJSON(t, ts, http.MethodPost, "/api/stories", tokenAlice, map[string]string{
		"initial_prompt": "no title",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed body.
	req := mustRequest(t, ts, http.MethodPost, "/api/stories", tokenAlice)
	req.Body = http.NoBody
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestUpdateSegmentOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/stories", tokenAlice, map[string]string{
		"title":          "T",
		"initial_prompt": "Begin.",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var task models.Task
	require.NoError(t, json.Unmarshal(body["task"], &task))
	done := pollTask(t, ts, tokenAlice, task.ID)

	resp, body = doJSON(t, ts, http.MethodPut, "/api/segments/"+done.ResultSegmentID, tokenAlice, map[string]string{
		"content_text": "Rewritten opening.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var segment models.Segment
	require.NoError(t, json.Unmarshal(body["segment"], &segment))
	require.Equal(t, "Rewritten opening.", segment.ContentText)

	var recompute models.Task
	require.NoError(t, json.Unmarshal(body["task"], &recompute))
	require.Equal(t, models.TaskTypeRecomputeEmbedding, recompute.Type)

	recomputeDone := pollTask(t, ts, tokenAlice, recompute.ID)
	require.Equal(t, models.TaskStateDone, recomputeDone.State)

	// Bob cannot edit Alice's segment.
	resp, _ = doJSON(t, ts, http.MethodPut, "/api/segments/"+done.ResultSegmentID, tokenBob, map[string]string{
		"content_text": "Vandalism.",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
