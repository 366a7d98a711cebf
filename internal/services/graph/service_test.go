package graph

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	badgerstorage "github.com/ternarybob/fabula/internal/storage/badger"
)

func newTestGraph(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badgerstorage.NewManager(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "graph-test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	svc := NewService(manager.StoryStorage(), manager.SegmentStorage(), manager.EdgeStorage(), logger)
	return svc, manager
}

func seedStory(t *testing.T, m interfaces.StorageManager, id string) {
	t.Helper()
	err := m.StoryStorage().SaveStory(&models.Story{
		ID:            id,
		OwnerID:       "owner-a",
		Title:         "Test Story",
		InitialPrompt: "Begin.",
	})
	if err != nil {
		t.Fatalf("Failed to seed story: %v", err)
	}
}

func embeddingWith(seed float32) []float32 {
	v := models.ZeroEmbedding()
	v[0] = seed
	return v
}

func TestCreateSegmentUnknownStory(t *testing.T) {
	svc, _ := newTestGraph(t)

	_, err := svc.CreateSegment("story_missing", "text", embeddingWith(1))
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreateSegmentWrongDimension(t *testing.T) {
	svc, m := newTestGraph(t)
	seedStory(t, m, "story_1")

	_, err := svc.CreateSegment("story_1", "text", make([]float32, 3))
	if !models.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestCreateEdgeRules(t *testing.T) {
	svc, m := newTestGraph(t)
	seedStory(t, m, "story_1")
	seedStory(t, m, "story_2")

	seg1, err := svc.CreateSegment("story_1", "first", embeddingWith(1))
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}
	seg2, err := svc.CreateSegment("story_1", "second", embeddingWith(2))
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}
	foreign, err := svc.CreateSegment("story_2", "elsewhere", embeddingWith(3))
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}

	// Self-loop rejected.
	if _, err := svc.CreateEdge("story_1", seg1.ID, seg1.ID); !models.IsValidation(err) {
		t.Errorf("Expected validation error for self-loop, got %v", err)
	}

	// Cross-story endpoint rejected.
	if _, err := svc.CreateEdge("story_1", seg1.ID, foreign.ID); !models.IsValidation(err) {
		t.Errorf("Expected validation error for cross-story edge, got %v", err)
	}

	// Valid edge.
	edge, err := svc.CreateEdge("story_1", seg1.ID, seg2.ID)
	if err != nil {
		t.Fatalf("Failed to create edge: %v", err)
	}
	if edge.SourceID != seg1.ID || edge.TargetID != seg2.ID {
		t.Errorf("Edge endpoints wrong: %+v", edge)
	}

	// Duplicate ordered pair rejected.
	if _, err := svc.CreateEdge("story_1", seg1.ID, seg2.ID); !models.IsValidation(err) {
		t.Errorf("Expected validation error for duplicate edge, got %v", err)
	}

	// Reverse direction is a distinct edge and allowed.
	if _, err := svc.CreateEdge("story_1", seg2.ID, seg1.ID); err != nil {
		t.Errorf("Expected reverse edge to be allowed, got %v", err)
	}
}

func TestUpdateSegmentTextKeepsEmbedding(t *testing.T) {
	svc, manager := newTestGraph(t)
	seedStory(t, manager, "story_1")

	seg, err := svc.CreateSegment("story_1", "original", embeddingWith(0.7))
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}

	updated, err := svc.UpdateSegmentText(seg.ID, "rewritten")
	if err != nil {
		t.Fatalf("Failed to update segment: %v", err)
	}
	if updated.ContentText != "rewritten" {
		t.Errorf("Expected updated text, got %q", updated.ContentText)
	}
	// The embedding is refreshed by an async recompute, not here.
	if updated.Embedding[0] != 0.7 {
		t.Errorf("Expected embedding untouched, got %f", updated.Embedding[0])
	}
}

func TestGetGraphMaterialization(t *testing.T) {
	svc, m := newTestGraph(t)
	seedStory(t, m, "story_1")

	seg1, _ := svc.CreateSegment("story_1", "first", embeddingWith(1))
	seg2, _ := svc.CreateSegment("story_1", "second", embeddingWith(2))
	if _, err := svc.CreateEdge("story_1", seg1.ID, seg2.ID); err != nil {
		t.Fatalf("Failed to create edge: %v", err)
	}

	g, err := svc.GetGraph("story_1")
	if err != nil {
		t.Fatalf("Failed to get graph: %v", err)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(g.Edges))
	}
	if g.Edges[0].Source != seg1.ID || g.Edges[0].Target != seg2.ID {
		t.Errorf("Edge endpoints wrong: %+v", g.Edges[0])
	}

	if _, err := svc.GetGraph("story_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing story, got %v", err)
	}
}
