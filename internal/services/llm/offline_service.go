package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

// OfflineService is a deterministic local provider with no external network
// calls. It backs development and tests, and serves as the fallback target
// when no cloud credentials are configured. Embeddings are hashed
// bag-of-words vectors: identical text always produces identical vectors,
// and texts sharing vocabulary land near each other, which is enough for
// retrieval ordering to be exercised meaningfully.
type OfflineService struct {
	dimension int
	logger    arbor.ILogger
}

// NewOfflineService creates a new offline provider.
func NewOfflineService(dimension int, logger arbor.ILogger) *OfflineService {
	return &OfflineService{
		dimension: dimension,
		logger:    logger,
	}
}

// Embed generates a deterministic embedding by hashing tokens into vector
// buckets and L2-normalizing. The empty string yields the zero vector.
func (s *OfflineService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, s.dimension)

	tokens := strings.Fields(strings.ToLower(text))
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(s.dimension))
		// High bit decides sign so the vector is not all-positive
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

// Chat produces a deterministic placeholder continuation from the last user
// message. The output shape is stable so pipeline behavior stays observable
// in tests without a generation backend.
func (s *OfflineService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	prompt := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			prompt = messages[i].Content
			break
		}
	}

	return PlaceholderSegment(prompt), nil
}

// GenerateImage returns a deterministic placeholder image reference.
func (s *OfflineService) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := "https://placehold.co/600x400?text=" + url.QueryEscape(truncate(prompt, 64))
	if style != "" {
		ref += "&style=" + url.QueryEscape(style)
	}
	return ref, nil
}

// HealthCheck always succeeds for the offline provider.
func (s *OfflineService) HealthCheck(ctx context.Context) error {
	return nil
}

// GetMode returns LLMModeOffline.
func (s *OfflineService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeOffline
}

// Close releases resources (no-op).
func (s *OfflineService) Close() error {
	return nil
}

// PlaceholderSegment is the deterministic fallback continuation used both
// by the offline provider and by the fail_soft degradation path.
func PlaceholderSegment(prompt string) string {
	return fmt.Sprintf("Based on the context and your prompt '%s', here is the next segment of the story...", prompt)
}

// truncate limits s to max runes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	for i := range s {
		if max == 0 {
			return s[:i]
		}
		max--
	}
	return s
}
