package graph

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Service owns persistence and integrity enforcement for the story graph.
// All segment and edge writes go through here so the invariants hold no
// matter which pipeline produced the write: an edge always joins two
// segments of its own story, never loops, and never duplicates an ordered
// (source, target) pair.
type Service struct {
	stories  interfaces.StoryStorage
	segments interfaces.SegmentStorage
	edges    interfaces.EdgeStorage
	logger   arbor.ILogger
}

// NewService creates a new graph service.
func NewService(stories interfaces.StoryStorage, segments interfaces.SegmentStorage, edges interfaces.EdgeStorage, logger arbor.ILogger) *Service {
	return &Service{
		stories:  stories,
		segments: segments,
		edges:    edges,
		logger:   logger,
	}
}

// CreateSegment inserts a new segment into a story. Returns ErrNotFound
// when the story does not exist. The embedding must already be populated;
// callers that have no content embedding yet pass the zero vector and
// correct it afterwards.
func (s *Service) CreateSegment(storyID, contentText string, embedding []float32) (*models.Segment, error) {
	if _, err := s.stories.GetStory(storyID); err != nil {
		return nil, err
	}

	if len(embedding) != models.EmbeddingDim {
		return nil, models.NewValidationError("embedding", fmt.Sprintf("must have %d dimensions, got %d", models.EmbeddingDim, len(embedding)))
	}

	segment := &models.Segment{
		ID:          common.NewSegmentID(),
		StoryID:     storyID,
		ContentText: contentText,
		Embedding:   embedding,
	}

	if err := s.segments.SaveSegment(segment); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("segment_id", segment.ID).
		Str("story_id", storyID).
		Msg("Segment created")

	return segment, nil
}

// CreateEdge links source -> target within a story. Returns a
// ValidationError when either endpoint is outside the story, when source
// equals target, or when the ordered pair already exists.
func (s *Service) CreateEdge(storyID, sourceID, targetID string) (*models.Edge, error) {
	if sourceID == targetID {
		return nil, models.NewValidationError("target_id", "a segment cannot connect to itself")
	}

	if _, err := s.segments.GetSegmentInStory(sourceID, storyID); err != nil {
		return nil, models.NewValidationError("source_id", "source segment does not belong to this story")
	}
	if _, err := s.segments.GetSegmentInStory(targetID, storyID); err != nil {
		return nil, models.NewValidationError("target_id", "target segment does not belong to this story")
	}

	exists, err := s.edges.EdgeExists(sourceID, targetID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("target_id", "edge already exists for this source and target")
	}

	edge := &models.Edge{
		ID:       common.NewEdgeID(),
		StoryID:  storyID,
		SourceID: sourceID,
		TargetID: targetID,
	}

	if err := s.edges.SaveEdge(edge); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("edge_id", edge.ID).
		Str("source_id", sourceID).
		Str("target_id", targetID).
		Msg("Edge created")

	return edge, nil
}

// UpdateSegmentText updates a segment's content synchronously. The
// embedding is NOT refreshed here; the caller enqueues an async recompute,
// so the stored embedding lags the text until that task runs.
func (s *Service) UpdateSegmentText(segmentID, newText string) (*models.Segment, error) {
	segment, err := s.segments.GetSegment(segmentID)
	if err != nil {
		return nil, err
	}

	segment.ContentText = newText

	if err := s.segments.SaveSegment(segment); err != nil {
		return nil, err
	}

	return segment, nil
}

// SetSegmentEmbedding persists a recomputed embedding for a segment.
func (s *Service) SetSegmentEmbedding(segmentID string, embedding []float32) (*models.Segment, error) {
	segment, err := s.segments.GetSegment(segmentID)
	if err != nil {
		return nil, err
	}

	segment.Embedding = embedding

	if err := s.segments.SaveSegment(segment); err != nil {
		return nil, err
	}

	return segment, nil
}

// SetSegmentImage persists a generated image reference for a segment.
func (s *Service) SetSegmentImage(segmentID, imageURL string) (*models.Segment, error) {
	segment, err := s.segments.GetSegment(segmentID)
	if err != nil {
		return nil, err
	}

	segment.ImageURL = imageURL

	if err := s.segments.SaveSegment(segment); err != nil {
		return nil, err
	}

	return segment, nil
}

// StoryContents returns a story's segments in creation order and all of
// its edges, for the nested story detail response.
func (s *Service) StoryContents(storyID string) ([]*models.Segment, []*models.Edge, error) {
	segments, err := s.segments.ListSegmentsByStory(storyID)
	if err != nil {
		return nil, nil, err
	}

	edges, err := s.edges.ListEdgesByStory(storyID)
	if err != nil {
		return nil, nil, err
	}

	return segments, edges, nil
}

// GetGraph materializes the full story graph for presentation.
func (s *Service) GetGraph(storyID string) (*models.Graph, error) {
	if _, err := s.stories.GetStory(storyID); err != nil {
		return nil, err
	}

	segments, err := s.segments.ListSegmentsByStory(storyID)
	if err != nil {
		return nil, err
	}

	edges, err := s.edges.ListEdgesByStory(storyID)
	if err != nil {
		return nil, err
	}

	graph := &models.Graph{
		Nodes: make([]models.GraphNode, 0, len(segments)),
		Edges: make([]models.GraphEdge, 0, len(edges)),
	}

	for _, seg := range segments {
		graph.Nodes = append(graph.Nodes, models.GraphNode{
			ID:        seg.ID,
			Content:   seg.ContentText,
			ImageURL:  seg.ImageURL,
			CreatedAt: seg.CreatedAt,
		})
	}

	for _, edge := range edges {
		graph.Edges = append(graph.Edges, models.GraphEdge{
			Source:    edge.SourceID,
			Target:    edge.TargetID,
			CreatedAt: edge.CreatedAt,
		})
	}

	return graph, nil
}
