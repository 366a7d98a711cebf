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

// StoryStorage implements the StoryStorage interface for Badger
type StoryStorage struct {
	db      *BadgerDB
	segment interfaces.SegmentStorage
	edge    interfaces.EdgeStorage
	logger  arbor.ILogger
}

// NewStoryStorage creates a new StoryStorage instance
func NewStoryStorage(db *BadgerDB, segment interfaces.SegmentStorage, edge interfaces.EdgeStorage, logger arbor.ILogger) interfaces.StoryStorage {
	return &StoryStorage{
		db:      db,
		segment: segment,
		edge:    edge,
		logger:  logger,
	}
}

func (s *StoryStorage) SaveStory(story *models.Story) error {
	if story.ID == "" {
		return fmt.Errorf("story ID is required")
	}

	now := time.Now()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}
	story.UpdatedAt = now

	if err := s.db.Store().Upsert(story.ID, story); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

func (s *StoryStorage) GetStory(id string) (*models.Story, error) {
	var story models.Story
	if err := s.db.Store().Get(id, &story); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("story %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

func (s *StoryStorage) GetStoryForOwner(id, ownerID string) (*models.Story, error) {
	story, err := s.GetStory(id)
	if err != nil {
		return nil, err
	}
	// An ownership miss reads the same as a missing story.
	if story.OwnerID != ownerID {
		return nil, fmt.Errorf("story %s: %w", id, models.ErrNotFound)
	}
	return story, nil
}

func (s *StoryStorage) ListStoriesByOwner(ownerID string) ([]*models.Story, error) {
	var stories []models.Story
	err := s.db.Store().Find(&stories, badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	// Newest first
	sort.Slice(stories, func(i, j int) bool {
		return stories[i].CreatedAt.After(stories[j].CreatedAt)
	})

	result := make([]*models.Story, len(stories))
	for i := range stories {
		result[i] = &stories[i]
	}
	return result, nil
}

// DeleteStory removes the story and cascades to its segments and edges.
func (s *StoryStorage) DeleteStory(id string) error {
	if _, err := s.GetStory(id); err != nil {
		return err
	}

	if err := s.edge.DeleteEdgesForStory(id); err != nil {
		return err
	}

	segments, err := s.segment.ListSegmentsByStory(id)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if err := s.db.Store().Delete(seg.ID, &models.Segment{}); err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to delete segment %s: %w", seg.ID, err)
		}
	}

	if err := s.db.Store().Delete(id, &models.Story{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete story: %w", err)
	}

	s.logger.Debug().
		Str("story_id", id).
		Int("segments", len(segments)).
		Msg("Story deleted with cascade")

	return nil
}
