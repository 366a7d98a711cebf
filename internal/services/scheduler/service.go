package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/services/pipeline"
)

// Service runs the background sweep that re-embeds segments persisted with
// a zero vector after an embedding backend outage. Each sweep dispatches
// ordinary recompute pipelines, so repair work shows up as trackable tasks
// like everything else.
type Service struct {
	segments     interfaces.SegmentStorage
	orchestrator *pipeline.Orchestrator
	cron         *cron.Cron
	schedule     string
	limit        int
	mu           sync.Mutex
	running      bool
	logger       arbor.ILogger
}

// NewService creates a new sweep scheduler.
func NewService(segments interfaces.SegmentStorage, orchestrator *pipeline.Orchestrator, cfg common.SweepConfig, logger arbor.ILogger) *Service {
	return &Service{
		segments:     segments,
		orchestrator: orchestrator,
		cron:         cron.New(),
		schedule:     cfg.Schedule,
		limit:        cfg.Limit,
		logger:       logger,
	}
}

// Start registers the sweep with the cron runner and begins scheduling.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweep scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to register sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Int("limit", s.limit).
		Msg("Embedding sweep scheduler started")

	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Embedding sweep scheduler stopped")
}

// RunOnce executes one sweep immediately. Exposed for tests and for manual
// repair after restoring a backend.
func (s *Service) RunOnce() (int, error) {
	segments, err := s.segments.ListZeroEmbeddingSegments(s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list zero-embedding segments: %w", err)
	}

	dispatched := 0
	for _, segment := range segments {
		if _, err := s.orchestrator.SubmitRecompute(context.Background(), segment); err != nil {
			s.logger.Warn().
				Err(err).
				Str("segment_id", segment.ID).
				Msg("Failed to dispatch recompute for segment")
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

func (s *Service) runSweep() {
	dispatched, err := s.RunOnce()
	if err != nil {
		s.logger.Error().Err(err).Msg("Embedding sweep failed")
		return
	}

	if dispatched > 0 {
		s.logger.Info().
			Int("dispatched", dispatched).
			Msg("Embedding sweep dispatched recompute tasks")
	}
}
