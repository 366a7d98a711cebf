package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of a provider
type LLMMode string

const (
	// LLMModeCloud indicates the provider uses cloud-based LLM APIs
	LLMModeCloud LLMMode = "cloud"

	// LLMModeOffline indicates the provider uses local deterministic fallbacks
	LLMModeOffline LLMMode = "offline"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// EmbedProvider generates fixed-dimension embedding vectors.
type EmbedProvider interface {
	// Embed generates an embedding vector for the given text. The returned
	// vector always has the dimension the provider was configured with.
	Embed(ctx context.Context, text string) ([]float32, error)

	// GetMode returns whether the provider is cloud-backed or offline.
	GetMode() LLMMode

	// HealthCheck verifies the provider can handle requests.
	HealthCheck(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// TextProvider generates chat completions.
type TextProvider interface {
	// Chat generates a completion response based on the conversation
	// history, in chronological order including any system prompt.
	Chat(ctx context.Context, messages []Message) (string, error)

	GetMode() LLMMode
	HealthCheck(ctx context.Context) error
	Close() error
}

// ImageProvider generates images from text prompts.
type ImageProvider interface {
	// GenerateImage produces an image for the prompt and optional style
	// hint, returning a URL or path reference to the stored artifact.
	GenerateImage(ctx context.Context, prompt, style string) (string, error)

	GetMode() LLMMode
	HealthCheck(ctx context.Context) error
	Close() error
}
