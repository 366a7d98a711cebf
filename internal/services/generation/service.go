package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/services/llm"
)

const (
	// NoContextSentinel is passed as the context when a story has no
	// retrievable segments yet.
	NoContextSentinel = "No previous context available."

	systemPrompt = "You are a creative storyteller. Continue the narrative naturally from the " +
		"provided context, staying consistent with established characters, tone, and events. " +
		"Write a single story segment of two to four paragraphs. Do not summarize or explain; " +
		"write the story itself."
)

// Service implements GenerationService over the configured text and image
// providers. Under fail_soft a degraded text backend yields a deterministic
// placeholder continuation so the pipeline stays observable; image
// generation has no placeholder fallback and fails the task instead.
type Service struct {
	text     interfaces.TextProvider
	image    interfaces.ImageProvider
	failSoft bool
	limiter  *rate.Limiter
	logger   arbor.ILogger
}

// NewService creates a new generation service.
func NewService(text interfaces.TextProvider, image interfaces.ImageProvider, failSoft bool, limiter *rate.Limiter, logger arbor.ILogger) interfaces.GenerationService {
	return &Service{
		text:     text,
		image:    image,
		failSoft: failSoft,
		limiter:  limiter,
		logger:   logger,
	}
}

// GenerateSegment produces the next narrative unit from assembled context
// and the user's raw prompt.
func (s *Service) GenerateSegment(ctx context.Context, contextText, prompt string) (string, error) {
	if contextText == "" {
		contextText = NoContextSentinel
	}

	augmented := fmt.Sprintf("Context: %s\n\n---\n\nContinue the story based on this prompt: %s\n\nStory continuation:", contextText, prompt)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.degrade(prompt, fmt.Errorf("rate limiter wait failed: %w", err))
		}
	}

	start := time.Now()
	generated, err := s.text.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: augmented},
	})
	if err != nil {
		return s.degrade(prompt, err)
	}

	s.logger.Debug().
		Str("mode", string(s.text.GetMode())).
		Int("context_length", len(contextText)).
		Int("generated_length", len(generated)).
		Dur("duration", time.Since(start)).
		Msg("Generated story segment")

	return generated, nil
}

// degrade applies the configured failure policy for text generation.
func (s *Service) degrade(prompt string, err error) (string, error) {
	if !s.failSoft {
		return "", fmt.Errorf("segment generation failed: %w", err)
	}

	s.logger.Warn().
		Err(err).
		Msg("Generation backend degraded, returning placeholder segment")

	return llm.PlaceholderSegment(prompt), nil
}

// GenerateImage produces an image reference for the text and optional
// style hint.
func (s *Service) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	start := time.Now()
	ref, err := s.image.GenerateImage(ctx, prompt, style)
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}

	s.logger.Debug().
		Str("mode", string(s.image.GetMode())).
		Str("image_url", ref).
		Dur("duration", time.Since(start)).
		Msg("Generated image")

	return ref, nil
}
