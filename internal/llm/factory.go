package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/moodmap/internal/config"
)

// NewClient builds the generation client and the embedder. The embedder uses
// cfg.EmbeddingProvider when set, otherwise the generation provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, EmbedderClient, error) {
	gen, err := newProvider(ctx, strings.ToLower(cfg.Provider), cfg)
	if err != nil {
		return nil, nil, err
	}

	embedProvider := strings.ToLower(cfg.EmbeddingProvider)
	if embedProvider == "" || embedProvider == strings.ToLower(cfg.Provider) {
		emb, ok := gen.(EmbedderClient)
		if !ok {
			return nil, nil, fmt.Errorf("llm provider %s does not support embeddings; set embedding_provider", cfg.Provider)
		}
		return gen, emb, nil
	}

	other, err := newProvider(ctx, embedProvider, cfg)
	if err != nil {
		return nil, nil, err
	}
	emb, ok := other.(EmbedderClient)
	if !ok {
		return nil, nil, fmt.Errorf("embedding provider %s does not support embeddings", embedProvider)
	}
	return gen, emb, nil
}

func newProvider(ctx context.Context, provider string, cfg config.LLMConfig) (LLMClient, error) {
	opts := GenerationOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL, opts), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel, opts)

	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, opts), nil

	case "ollama":
		// Ollama is reached through its OpenAI-compatible API.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama, required by the client
		}
		return NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL, opts), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
