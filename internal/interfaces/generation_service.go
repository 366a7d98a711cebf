package interfaces

import "context"

// GenerationService produces narrative text and image references. Under the
// fail_soft policy a degraded text backend yields a deterministic
// placeholder continuation instead of failing the pipeline.
type GenerationService interface {
	// GenerateSegment produces the next narrative unit from assembled
	// retrieval context (may be the no-context sentinel) and the user's
	// raw prompt.
	GenerateSegment(ctx context.Context, contextText, prompt string) (string, error)

	// GenerateImage produces an image reference for the text and optional
	// style hint.
	GenerateImage(ctx context.Context, prompt, style string) (string, error)
}
