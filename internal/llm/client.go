package llm

import (
	"context"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds several texts in one call. On success the result has
// the same length as texts, with result[i] belonging to texts[i].
type BatchEmbedder interface {
	EmbedderClient
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationOptions are applied by every provider that supports them.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}
