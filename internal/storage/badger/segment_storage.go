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

// SegmentStorage implements the SegmentStorage interface for Badger
type SegmentStorage struct {
	db     *BadgerDB
	edge   interfaces.EdgeStorage
	logger arbor.ILogger
}

// NewSegmentStorage creates a new SegmentStorage instance
func NewSegmentStorage(db *BadgerDB, edge interfaces.EdgeStorage, logger arbor.ILogger) interfaces.SegmentStorage {
	return &SegmentStorage{
		db:     db,
		edge:   edge,
		logger: logger,
	}
}

func (s *SegmentStorage) SaveSegment(segment *models.Segment) error {
	if segment.ID == "" {
		return fmt.Errorf("segment ID is required")
	}
	if segment.StoryID == "" {
		return fmt.Errorf("segment story ID is required")
	}
	if len(segment.Embedding) != models.EmbeddingDim {
		return fmt.Errorf("segment embedding must have %d dimensions, got %d", models.EmbeddingDim, len(segment.Embedding))
	}

	now := time.Now()
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = now
	}
	segment.UpdatedAt = now

	if err := s.db.Store().Upsert(segment.ID, segment); err != nil {
		return fmt.Errorf("failed to save segment: %w", err)
	}
	return nil
}

func (s *SegmentStorage) GetSegment(id string) (*models.Segment, error) {
	var segment models.Segment
	if err := s.db.Store().Get(id, &segment); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("segment %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &segment, nil
}

func (s *SegmentStorage) GetSegmentInStory(id, storyID string) (*models.Segment, error) {
	segment, err := s.GetSegment(id)
	if err != nil {
		return nil, err
	}
	if segment.StoryID != storyID {
		return nil, fmt.Errorf("segment %s: %w", id, models.ErrNotFound)
	}
	return segment, nil
}

func (s *SegmentStorage) ListSegmentsByStory(storyID string) ([]*models.Segment, error) {
	var segments []models.Segment
	err := s.db.Store().Find(&segments, badgerhold.Where("StoryID").Eq(storyID).Index("StoryID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	// Creation order, ID as deterministic tie-break
	sort.Slice(segments, func(i, j int) bool {
		if !segments[i].CreatedAt.Equal(segments[j].CreatedAt) {
			return segments[i].CreatedAt.Before(segments[j].CreatedAt)
		}
		return segments[i].ID < segments[j].ID
	})

	result := make([]*models.Segment, len(segments))
	for i := range segments {
		result[i] = &segments[i]
	}
	return result, nil
}

// DeleteSegment removes the segment and cascades edges referencing it.
func (s *SegmentStorage) DeleteSegment(id string) error {
	if _, err := s.GetSegment(id); err != nil {
		return err
	}

	if err := s.edge.DeleteEdgesForSegment(id); err != nil {
		return err
	}

	if err := s.db.Store().Delete(id, &models.Segment{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	return nil
}

func (s *SegmentStorage) ListZeroEmbeddingSegments(limit int) ([]*models.Segment, error) {
	var segments []models.Segment
	if err := s.db.Store().Find(&segments, nil); err != nil {
		return nil, fmt.Errorf("failed to scan segments: %w", err)
	}

	var result []*models.Segment
	for i := range segments {
		if segments[i].HasZeroEmbedding() {
			result = append(result, &segments[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
