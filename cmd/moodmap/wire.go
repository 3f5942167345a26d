package main

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/moodmap/internal/config"
	"github.com/agenthands/moodmap/internal/core/aggregate"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/mood"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
)

// clients holds the model clients plus anything that needs closing afterwards.
type clients struct {
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	closers  []func()
}

func (c *clients) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// newClients builds the LLM and embedder, putting the redis cache in front of
// the embedder when a redis URL is configured. An unreachable cache is logged
// and skipped.
func newClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (*clients, error) {
	gen, emb, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	c := &clients{LLM: gen, Embedder: emb}
	if closer, ok := gen.(interface{ Close() error }); ok {
		c.closers = append(c.closers, func() { _ = closer.Close() })
	}

	if cfg.Redis.URL != "" {
		cache, err := llm.NewRedisCache(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		if err != nil {
			log.Warn("embedding cache disabled", "error", err)
		} else {
			c.Embedder = llm.NewCachedEmbedder(emb, cache, cfg.LLM.EmbeddingModel, log)
			c.closers = append(c.closers, func() { _ = cache.Close() })
		}
	}
	return c, nil
}

func newBuilder(cfg *config.Config, emb llm.EmbedderClient, log *logger.Logger, m *metrics.Metrics) *index.Builder {
	return index.NewBuilder(emb, index.BuilderConfig{
		Concurrency:   cfg.Index.Concurrency,
		BatchSize:     cfg.Index.BatchSize,
		RatePerSecond: cfg.Index.RatePerSecond,
		Burst:         cfg.Index.Burst,
		Timeout:       time.Duration(cfg.Index.TimeoutSeconds) * time.Second,
		MaxChars:      cfg.Index.MaxChars,
	}, log, m)
}

func newAggregator(cfg *config.Config, log *logger.Logger) *aggregate.Aggregator {
	return aggregate.NewAggregator(aggregate.Config{
		TopLabels:     cfg.Pipeline.TopLabels,
		TopActors:     cfg.Pipeline.TopActors,
		SampleURLs:    cfg.Pipeline.SampleURLs,
		TonePrecision: cfg.Pipeline.TonePrecision,
		Concurrency:   cfg.Pipeline.Concurrency,
		CountryNames:  cfg.Pipeline.CountryNames,
	}, log)
}

func newScorer(cfg *config.Config) (*mood.Scorer, error) {
	t := cfg.Mood.Thresholds
	return mood.NewScorer(mood.Config{
		ToneScale: cfg.Mood.ToneScale,
		Weight:    cfg.Mood.Weight,
		Thresholds: mood.Thresholds{
			VeryNegative: t.VeryNegative,
			Negative:     t.Negative,
			Neutral:      t.Neutral,
			Positive:     t.Positive,
		},
	})
}
