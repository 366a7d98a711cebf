package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// Providers bundles the per-capability providers selected by configuration.
// Text, embedding, and image generation are independent concerns: a
// deployment may run Claude for text while embedding stays offline.
type Providers struct {
	Embed interfaces.EmbedProvider
	Text  interfaces.TextProvider
	Image interfaces.ImageProvider
}

// Close closes all providers.
func (p *Providers) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{p.Embed, p.Text, p.Image} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewProviders creates the configured provider set. A provider name of
// "offline", or missing credentials for a cloud provider, resolves to the
// deterministic offline implementation.
func NewProviders(cfg *common.Config, logger arbor.ILogger) (*Providers, error) {
	offlineSvc := NewOfflineService(cfg.Embedding.Dimension, logger)

	providers := &Providers{
		Embed: offlineSvc,
		Text:  offlineSvc,
		Image: offlineSvc,
	}

	var gemini *GeminiService
	needsGemini := cfg.LLM.EmbedProvider == "gemini" || cfg.LLM.TextProvider == "gemini" || cfg.LLM.ImageProvider == "gemini"
	if needsGemini {
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("Gemini provider requested but no API key configured, falling back to offline")
		} else {
			svc, err := NewGeminiService(&cfg.Gemini, cfg.Embedding.Dimension, cfg.Storage.Filesystem.Images, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
			}
			gemini = svc
		}
	}

	switch cfg.LLM.EmbedProvider {
	case "", "offline":
	case "gemini":
		if gemini != nil {
			providers.Embed = gemini
		}
	default:
		return nil, fmt.Errorf("unsupported embed provider: %s", cfg.LLM.EmbedProvider)
	}

	switch cfg.LLM.TextProvider {
	case "", "offline":
	case "claude":
		if cfg.Claude.APIKey == "" {
			logger.Warn().Msg("Claude provider requested but no API key configured, falling back to offline")
		} else {
			svc, err := NewClaudeService(&cfg.Claude, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create Claude provider: %w", err)
			}
			providers.Text = svc
		}
	default:
		return nil, fmt.Errorf("unsupported text provider: %s", cfg.LLM.TextProvider)
	}

	switch cfg.LLM.ImageProvider {
	case "", "offline":
	case "gemini":
		if gemini != nil {
			providers.Image = gemini
		}
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.LLM.ImageProvider)
	}

	logger.Info().
		Str("embed_provider", string(providers.Embed.GetMode())).
		Str("text_provider", string(providers.Text.GetMode())).
		Str("image_provider", string(providers.Image.GetMode())).
		Msg("LLM providers initialized")

	return providers, nil
}
