package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agenthands/moodmap/internal/core/common"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
)

type BuilderConfig struct {
	Concurrency   int
	BatchSize     int
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxChars      int
}

type Builder struct {
	embedder llm.EmbedderClient
	cfg      BuilderConfig
	limiter  *rate.Limiter
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewBuilder(embedder llm.EmbedderClient, cfg BuilderConfig, log *logger.Logger, m *metrics.Metrics) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Builder{
		embedder: embedder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		log:      logger.OrNop(log).With("component", "index_builder"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build embeds every document's topic_doc and returns a new generation.
// Per-document failures are recorded on the generation and skipped; if no
// document could be embedded the result is ErrIndexUnavailable.
func (b *Builder) Build(ctx context.Context, docs []model.CountryDayDocument) (*Generation, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = common.Truncate(d.TopicDoc, b.cfg.MaxChars)
	}

	vectors := make([][]float32, len(docs))
	errs := make([]error, len(docs))

	batcher, canBatch := b.embedder.(llm.BatchEmbedder)
	size := 1
	if canBatch && b.cfg.BatchSize > 1 {
		size = b.cfg.BatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		g.Go(func() error {
			if size > 1 {
				return b.embedBatch(gctx, batcher, texts, vectors, errs, start, end)
			}
			return b.embedEach(gctx, texts, vectors, errs, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	// The generation's dimension is fixed by the first embedded document in input order.
	dim := 0
	var records []model.EmbeddingRecord
	var failures []error
	builtAt := b.now()
	for i, d := range docs {
		if errs[i] == nil && len(vectors[i]) == 0 {
			errs[i] = errors.New("empty vector")
		}
		if errs[i] == nil && dim == 0 {
			dim = len(vectors[i])
		}
		if errs[i] == nil && len(vectors[i]) != dim {
			errs[i] = fmt.Errorf("got %d dimensions, want %d: %w", len(vectors[i]), dim, model.ErrDimensionMismatch)
		}
		if errs[i] != nil {
			fail := &model.EmbeddingServiceError{DocumentID: d.ID, Cause: errs[i]}
			b.log.Warn("skipping document", "document_id", d.ID, "error", errs[i])
			failures = append(failures, fail)
			continue
		}
		records = append(records, model.EmbeddingRecord{DocumentID: d.ID, Vector: vectors[i], GeneratedAt: builtAt})
	}

	gen, err := NewGeneration(uuid.New().String(), builtAt, docs, records, b.embedder)
	if err != nil {
		return nil, err
	}
	gen = gen.WithMaxChars(b.cfg.MaxChars)
	gen.failures = append(failures, gen.failures...)

	if len(docs) > 0 && gen.Len() == 0 {
		return nil, fmt.Errorf("%w: all %d documents failed to embed", model.ErrIndexUnavailable, len(docs))
	}

	b.log.Info("built index generation", "generation_id", gen.ID, "documents", gen.Len(), "failed", len(gen.failures), "dim", gen.Dim())
	return gen, nil
}

func (b *Builder) embedEach(ctx context.Context, texts []string, vectors [][]float32, errs []error, start, end int) error {
	for i := start; i < end; i++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := b.callContext(ctx)
		began := time.Now()
		vec, err := b.embedder.Embed(callCtx, texts[i])
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.metrics.ObserveEmbed(outcome(err), time.Since(began))
		vectors[i], errs[i] = vec, err
	}
	return nil
}

// embedBatch falls back to one call per text when the batch call fails, so a
// single bad document does not take its batch down with it.
func (b *Builder) embedBatch(ctx context.Context, batcher llm.BatchEmbedder, texts []string, vectors [][]float32, errs []error, start, end int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := b.callContext(ctx)
	began := time.Now()
	vecs, err := batcher.EmbedBatch(callCtx, texts[start:end])
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && len(vecs) != end-start {
		err = fmt.Errorf("expected %d embeddings, got %d", end-start, len(vecs))
	}
	b.metrics.ObserveEmbed(outcome(err), time.Since(began))
	if err != nil {
		b.log.Warn("batch embedding failed, retrying per document", "size", end-start, "error", err)
		return b.embedEach(ctx, texts, vectors, errs, start, end)
	}
	copy(vectors[start:end], vecs)
	return nil
}

func (b *Builder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, b.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
