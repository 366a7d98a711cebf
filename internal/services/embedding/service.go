package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Service implements EmbeddingService over a configured provider.
//
// The degradation policy is explicit: under fail_soft a provider failure
// yields a zero vector of the correct dimension instead of an error, so a
// segment record never goes unembedded even while the backend is down.
// Retrieval quality silently degrades; the background sweep repairs zero
// vectors once the backend recovers. Under fail_hard the error propagates
// and the pipeline step fails.
type Service struct {
	provider  interfaces.EmbedProvider
	dimension int
	failSoft  bool
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewService creates a new embedding service.
func NewService(provider interfaces.EmbedProvider, dimension int, failSoft bool, limiter *rate.Limiter, logger arbor.ILogger) interfaces.EmbeddingService {
	return &Service{
		provider:  provider,
		dimension: dimension,
		failSoft:  failSoft,
		limiter:   limiter,
		logger:    logger,
	}
}

// EmbedText returns a vector of exactly Dimension() floats for any input.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.degrade(fmt.Errorf("rate limiter wait failed: %w", err))
		}
	}

	start := time.Now()
	embedding, err := s.provider.Embed(ctx, text)
	if err != nil {
		return s.degrade(fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err))
	}

	if len(embedding) != s.dimension {
		return s.degrade(fmt.Errorf("provider returned %d dimensions, expected %d", len(embedding), s.dimension))
	}

	s.logger.Debug().
		Str("mode", string(s.provider.GetMode())).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return embedding, nil
}

// degrade applies the configured failure policy.
func (s *Service) degrade(err error) ([]float32, error) {
	if !s.failSoft {
		return nil, err
	}

	s.logger.Warn().
		Err(err).
		Msg("Embedding backend degraded, returning zero vector")

	return make([]float32, s.dimension), nil
}

// Dimension returns the embedding vector dimension.
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable checks whether the embedding backend is reachable.
func (s *Service) IsAvailable(ctx context.Context) bool {
	if s.provider == nil {
		return false
	}

	if err := s.provider.HealthCheck(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Embedding provider not available")
		return false
	}

	return true
}
