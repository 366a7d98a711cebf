package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// GeminiService implements the EmbedProvider and ImageProvider interfaces
// using the Google genai SDK. Embeddings are generated with a fixed output
// dimensionality so every stored vector matches the segment schema; images
// are written to the configured media directory and referenced by URL path.
type GeminiService struct {
	config    *common.GeminiConfig
	logger    arbor.ILogger
	client    *genai.Client
	timeout   time.Duration
	dimension int
	imagesDir string
}

// NewGeminiService creates a new Gemini provider instance.
func NewGeminiService(geminiConfig *common.GeminiConfig, dimension int, imagesDir string, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini service (set via GEMINI_API_KEY or gemini.api_key in config)")
	}

	if geminiConfig.EmbedModelName == "" {
		geminiConfig.EmbedModelName = "text-embedding-004"
	}
	if geminiConfig.ImageModelName == "" {
		geminiConfig.ImageModelName = "imagen-3.0-generate-002"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:    geminiConfig,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		dimension: dimension,
		imagesDir: imagesDir,
	}

	logger.Info().
		Str("embed_model", geminiConfig.EmbedModelName).
		Str("image_model", geminiConfig.ImageModelName).
		Int("embed_dimension", dimension).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return service, nil
}

// Embed generates an embedding vector for the given text with the
// configured output dimensionality.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	embedding, err := s.generateEmbedding(timeoutCtx, text)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Embedding generation failed")
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generation completed")

	return embedding, nil
}

// GenerateImage produces an image for the prompt with an optional style
// hint, saves it to the media directory, and returns its URL path.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	imagePrompt := prompt
	if style != "" {
		imagePrompt = fmt.Sprintf("%s\n\nStyle: %s", prompt, style)
	}

	result, err := s.client.Models.GenerateImages(timeoutCtx, s.config.ImageModelName, imagePrompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if result == nil || len(result.GeneratedImages) == 0 || result.GeneratedImages[0].Image == nil {
		return "", fmt.Errorf("no image returned from API")
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	name := common.NewImageName()
	path := filepath.Join(s.imagesDir, name)
	if err := os.WriteFile(path, result.GeneratedImages[0].Image.ImageBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	s.logger.Debug().
		Str("file", name).
		Int("prompt_length", len(imagePrompt)).
		Msg("Image generated")

	return "/media/images/" + name, nil
}

// HealthCheck exercises the embedding model with a minimal probe.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCheckCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	embedding, err := s.generateEmbedding(healthCheckCtx, "health check")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding probe returned empty vector")
	}

	return nil
}

// GetMode returns LLMModeCloud as Gemini is always cloud-backed.
func (s *GeminiService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// Close releases resources.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini provider")
	s.client = nil
	return nil
}

// generateEmbedding calls the genai embedding API with the configured
// output dimensionality and validates the result.
func (s *GeminiService) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(s.dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(ctx, s.config.EmbedModelName, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}

	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	return embedding, nil
}
