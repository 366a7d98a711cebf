package badger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "fabula-test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewManagerWithDB(db, arbor.NewLogger())
}

func testEmbedding(seed float32) []float32 {
	v := models.ZeroEmbedding()
	v[0] = seed
	return v
}

func TestStoryOwnerScoping(t *testing.T) {
	m := newTestManager(t)

	story := &models.Story{
		ID:            "story_1",
		OwnerID:       "owner-a",
		Title:         "The Lighthouse",
		InitialPrompt: "A keeper finds a door that was not there yesterday.",
	}
	if err := m.StoryStorage().SaveStory(story); err != nil {
		t.Fatalf("Failed to save story: %v", err)
	}

	got, err := m.StoryStorage().GetStoryForOwner("story_1", "owner-a")
	if err != nil {
		t.Fatalf("Owner lookup failed: %v", err)
	}
	if got.Title != story.Title {
		t.Errorf("Expected title %q, got %q", story.Title, got.Title)
	}

	// A foreign owner must see the same error as a missing story.
	_, err = m.StoryStorage().GetStoryForOwner("story_1", "owner-b")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign owner, got %v", err)
	}

	_, err = m.StoryStorage().GetStoryForOwner("story_missing", "owner-a")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing story, got %v", err)
	}
}

func TestListStoriesNewestFirst(t *testing.T) {
	m := newTestManager(t)

	old := &models.Story{ID: "story_old", OwnerID: "owner-a", Title: "Old", InitialPrompt: "p", CreatedAt: time.Now().Add(-time.Hour)}
	recent := &models.Story{ID: "story_new", OwnerID: "owner-a", Title: "New", InitialPrompt: "p", CreatedAt: time.Now()}
	other := &models.Story{ID: "story_other", OwnerID: "owner-b", Title: "Other", InitialPrompt: "p"}

	for _, s := range []*models.Story{old, recent, other} {
		if err := m.StoryStorage().SaveStory(s); err != nil {
			t.Fatalf("Failed to save story %s: %v", s.ID, err)
		}
	}

	stories, err := m.StoryStorage().ListStoriesByOwner("owner-a")
	if err != nil {
		t.Fatalf("Failed to list stories: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("Expected 2 stories, got %d", len(stories))
	}
	if stories[0].ID != "story_new" || stories[1].ID != "story_old" {
		t.Errorf("Expected newest-first order, got %s then %s", stories[0].ID, stories[1].ID)
	}
}

func TestSegmentEmbeddingDimensionEnforced(t *testing.T) {
	m := newTestManager(t)

	err := m.SegmentStorage().SaveSegment(&models.Segment{
		ID:          "seg_bad",
		StoryID:     "story_1",
		ContentText: "text",
		Embedding:   make([]float32, 3),
	})
	if err == nil {
		t.Fatal("Expected error for wrong embedding dimension")
	}
}

func TestListSegmentsCreationOrder(t *testing.T) {
	m := newTestManager(t)

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"seg_c", "seg_a", "seg_b"} {
		seg := &models.Segment{
			ID:          id,
			StoryID:     "story_1",
			ContentText: "segment " + id,
			Embedding:   testEmbedding(float32(i + 1)),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := m.SegmentStorage().SaveSegment(seg); err != nil {
			t.Fatalf("Failed to save segment %s: %v", id, err)
		}
	}

	segments, err := m.SegmentStorage().ListSegmentsByStory("story_1")
	if err != nil {
		t.Fatalf("Failed to list segments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	want := []string{"seg_c", "seg_a", "seg_b"}
	for i, seg := range segments {
		if seg.ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], seg.ID)
		}
	}
}

func TestListZeroEmbeddingSegments(t *testing.T) {
	m := newTestManager(t)

	zero := &models.Segment{ID: "seg_zero", StoryID: "story_1", ContentText: "degraded", Embedding: models.ZeroEmbedding()}
	full := &models.Segment{ID: "seg_full", StoryID: "story_1", ContentText: "healthy", Embedding: testEmbedding(0.5)}

	for _, seg := range []*models.Segment{zero, full} {
		if err := m.SegmentStorage().SaveSegment(seg); err != nil {
			t.Fatalf("Failed to save segment: %v", err)
		}
	}

	got, err := m.SegmentStorage().ListZeroEmbeddingSegments(10)
	if err != nil {
		t.Fatalf("Failed to list zero-embedding segments: %v", err)
	}
	if len(got) != 1 || got[0].ID != "seg_zero" {
		t.Fatalf("Expected only seg_zero, got %d results", len(got))
	}
}

func TestEdgeExistsAndCascade(t *testing.T) {
	m := newTestManager(t)

	for i, id := range []string{"seg_1", "seg_2", "seg_3"} {
		seg := &models.Segment{ID: id, StoryID: "story_1", ContentText: id, Embedding: testEmbedding(float32(i + 1))}
		if err := m.SegmentStorage().SaveSegment(seg); err != nil {
			t.Fatalf("Failed to save segment: %v", err)
		}
	}

	edges := []*models.Edge{
		{ID: "edge_1", StoryID: "story_1", SourceID: "seg_1", TargetID: "seg_2"},
		{ID: "edge_2", StoryID: "story_1", SourceID: "seg_2", TargetID: "seg_3"},
	}
	for _, e := range edges {
		if err := m.EdgeStorage().SaveEdge(e); err != nil {
			t.Fatalf("Failed to save edge: %v", err)
		}
	}

	exists, err := m.EdgeStorage().EdgeExists("seg_1", "seg_2")
	if err != nil || !exists {
		t.Fatalf("Expected edge seg_1->seg_2 to exist, got exists=%v err=%v", exists, err)
	}

	// The reverse direction is a different edge.
	exists, err = m.EdgeStorage().EdgeExists("seg_2", "seg_1")
	if err != nil || exists {
		t.Fatalf("Expected no edge seg_2->seg_1, got exists=%v err=%v", exists, err)
	}

	// Deleting seg_2 removes both edges touching it.
	if err := m.SegmentStorage().DeleteSegment("seg_2"); err != nil {
		t.Fatalf("Failed to delete segment: %v", err)
	}
	remaining, err := m.EdgeStorage().ListEdgesByStory("story_1")
	if err != nil {
		t.Fatalf("Failed to list edges: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected all edges removed with segment, got %d", len(remaining))
	}
}

func TestDeleteStoryCascades(t *testing.T) {
	m := newTestManager(t)

	story := &models.Story{ID: "story_1", OwnerID: "owner-a", Title: "T", InitialPrompt: "p"}
	if err := m.StoryStorage().SaveStory(story); err != nil {
		t.Fatalf("Failed to save story: %v", err)
	}

	seg1 := &models.Segment{ID: "seg_1", StoryID: "story_1", ContentText: "a", Embedding: testEmbedding(1)}
	seg2 := &models.Segment{ID: "seg_2", StoryID: "story_1", ContentText: "b", Embedding: testEmbedding(2)}
	for _, seg := range []*models.Segment{seg1, seg2} {
		if err := m.SegmentStorage().SaveSegment(seg); err != nil {
			t.Fatalf("Failed to save segment: %v", err)
		}
	}
	if err := m.EdgeStorage().SaveEdge(&models.Edge{ID: "edge_1", StoryID: "story_1", SourceID: "seg_1", TargetID: "seg_2"}); err != nil {
		t.Fatalf("Failed to save edge: %v", err)
	}

	if err := m.StoryStorage().DeleteStory("story_1"); err != nil {
		t.Fatalf("Failed to delete story: %v", err)
	}

	if _, err := m.StoryStorage().GetStory("story_1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected story gone, got %v", err)
	}
	if _, err := m.SegmentStorage().GetSegment("seg_1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected segments gone, got %v", err)
	}
	edges, err := m.EdgeStorage().ListEdgesByStory("story_1")
	if err != nil {
		t.Fatalf("Failed to list edges: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("Expected edges gone, got %d", len(edges))
	}
}

func TestTaskLifecycle(t *testing.T) {
	m := newTestManager(t)

	task := models.NewTask("task_1", "owner-a", "story_1", models.TaskTypeSegmentGeneration)
	if err := m.TaskStorage().SaveTask(task); err != nil {
		t.Fatalf("Failed to save task: %v", err)
	}

	states := []models.TaskState{
		models.TaskStateEmbedding,
		models.TaskStateRetrieving,
		models.TaskStateGenerating,
		models.TaskStatePersisting,
		models.TaskStateLinking,
	}
	for _, state := range states {
		if err := m.TaskStorage().UpdateTaskState("task_1", state); err != nil {
			t.Fatalf("Failed to move task to %s: %v", state, err)
		}
		got, err := m.TaskStorage().GetTask("task_1")
		if err != nil {
			t.Fatalf("Failed to get task: %v", err)
		}
		if got.State != state {
			t.Errorf("Expected state %s, got %s", state, got.State)
		}
	}

	if err := m.TaskStorage().SetTaskResult("task_1", "seg_1", ""); err != nil {
		t.Fatalf("Failed to set task result: %v", err)
	}
	if err := m.TaskStorage().UpdateTaskState("task_1", models.TaskStateDone); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	got, err := m.TaskStorage().GetTaskForOwner("task_1", "owner-a")
	if err != nil {
		t.Fatalf("Owner lookup failed: %v", err)
	}
	if got.ResultSegmentID != "seg_1" {
		t.Errorf("Expected result segment seg_1, got %q", got.ResultSegmentID)
	}
	if !got.State.Terminal() {
		t.Errorf("Expected terminal state, got %s", got.State)
	}

	if _, err := m.TaskStorage().GetTaskForOwner("task_1", "owner-b"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestSetTaskErrorMarksFailed(t *testing.T) {
	m := newTestManager(t)

	task := models.NewTask("task_1", "owner-a", "story_1", models.TaskTypeImageGeneration)
	if err := m.TaskStorage().SaveTask(task); err != nil {
		t.Fatalf("Failed to save task: %v", err)
	}

	if err := m.TaskStorage().SetTaskError("task_1", "backend unavailable"); err != nil {
		t.Fatalf("Failed to set task error: %v", err)
	}

	got, err := m.TaskStorage().GetTask("task_1")
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if got.State != models.TaskStateFailed {
		t.Errorf("Expected FAILED, got %s", got.State)
	}
	if got.Error != "backend unavailable" {
		t.Errorf("Expected error message recorded, got %q", got.Error)
	}
}
