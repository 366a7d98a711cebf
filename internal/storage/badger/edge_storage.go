package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// EdgeStorage implements the EdgeStorage interface for Badger
type EdgeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEdgeStorage creates a new EdgeStorage instance
func NewEdgeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EdgeStorage {
	return &EdgeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *EdgeStorage) SaveEdge(edge *models.Edge) error {
	if edge.ID == "" {
		return fmt.Errorf("edge ID is required")
	}
	if edge.StoryID == "" {
		return fmt.Errorf("edge story ID is required")
	}

	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(edge.ID, edge); err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

func (s *EdgeStorage) ListEdgesByStory(storyID string) ([]*models.Edge, error) {
	var edges []models.Edge
	err := s.db.Store().Find(&edges, badgerhold.Where("StoryID").Eq(storyID).Index("StoryID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.Before(edges[j].CreatedAt)
		}
		return edges[i].ID < edges[j].ID
	})

	result := make([]*models.Edge, len(edges))
	for i := range edges {
		result[i] = &edges[i]
	}
	return result, nil
}

func (s *EdgeStorage) EdgeExists(sourceID, targetID string) (bool, error) {
	var edges []models.Edge
	err := s.db.Store().Find(&edges, badgerhold.Where("SourceID").Eq(sourceID).And("TargetID").Eq(targetID))
	if err != nil {
		return false, fmt.Errorf("failed to check edge existence: %w", err)
	}
	return len(edges) > 0, nil
}

func (s *EdgeStorage) DeleteEdgesForSegment(segmentID string) error {
	err := s.db.Store().DeleteMatching(&models.Edge{},
		badgerhold.Where("SourceID").Eq(segmentID).Or(badgerhold.Where("TargetID").Eq(segmentID)))
	if err != nil {
		return fmt.Errorf("failed to delete edges for segment %s: %w", segmentID, err)
	}
	return nil
}

func (s *EdgeStorage) DeleteEdgesForStory(storyID string) error {
	err := s.db.Store().DeleteMatching(&models.Edge{}, badgerhold.Where("StoryID").Eq(storyID).Index("StoryID"))
	if err != nil {
		return fmt.Errorf("failed to delete edges for story %s: %w", storyID, err)
	}
	return nil
}
