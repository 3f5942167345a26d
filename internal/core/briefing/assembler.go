// Package briefing turns a scored country-day and its analogs into a
// four-section narrative via the generation service.
package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/moodmap/internal/config"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
)

// AnalogSource is the read side of an index generation.
type AnalogSource interface {
	Neighbors(id string, q index.Query) ([]model.SearchResult, error)
}

type Config struct {
	ContextChars int
	SnippetChars int
	PastOnly     bool
	Timeout      time.Duration
	Model        string
}

func DefaultConfig() Config {
	return Config{
		ContextChars: 700,
		SnippetChars: 400,
		PastOnly:     true,
		Timeout:      60 * time.Second,
	}
}

type Assembler struct {
	LLM     llm.LLMClient
	Prompts config.Prompts
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAssembler(client llm.LLMClient, prompts config.Prompts, cfg Config, log *logger.Logger, m *metrics.Metrics) *Assembler {
	return &Assembler{
		LLM:     client,
		Prompts: prompts,
		cfg:     cfg,
		log:     logger.OrNop(log).With("component", "briefing"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const maxAttempts = 2

// Assemble retrieves k analogs for doc, asks the generation service for a
// briefing and validates the four sections. A malformed or failed response
// is retried once with the strict prompt, then surfaced. No partial
// briefing is ever returned.
func (a *Assembler) Assemble(ctx context.Context, doc model.CountryDayDocument, score model.MoodScore, analogs AnalogSource, k int) (model.Briefing, error) {
	key := doc.Key()

	results, err := a.analogs(doc, analogs, k)
	if err != nil {
		a.metrics.ObserveBriefing("no_analogs")
		return model.Briefing{}, fmt.Errorf("failed to retrieve analogs for %s: %w", key, err)
	}

	body, err := json.MarshalIndent(a.payload(doc, score, results), "", "  ")
	if err != nil {
		return model.Briefing{}, fmt.Errorf("failed to encode briefing payload: %w", err)
	}

	var lastErr error
	var missing []string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := a.Prompts.Briefing
		if attempt > 1 && a.Prompts.BriefingStrict != "" {
			prompt = a.Prompts.BriefingStrict
		}

		response, err := a.generate(ctx, fmt.Sprintf(prompt, body))
		if err != nil {
			if ctx.Err() != nil {
				return model.Briefing{}, ctx.Err()
			}
			a.log.Warn("briefing generation failed", "key", key.String(), "attempt", attempt, "error", err)
			lastErr, missing = err, nil
			continue
		}

		sections, miss := ParseSections(response)
		if len(miss) > 0 {
			a.log.Warn("briefing missing sections", "key", key.String(), "attempt", attempt, "missing", miss)
			lastErr, missing = nil, miss
			continue
		}

		a.metrics.ObserveBriefing("ok")
		return model.Briefing{
			Country:     doc.Country,
			Day:         doc.Day,
			Sections:    sections,
			Analogs:     analogRefs(results),
			Model:       a.cfg.Model,
			Attempts:    attempt,
			GeneratedAt: a.now(),
		}, nil
	}

	if missing != nil {
		a.metrics.ObserveBriefing("malformed")
		return model.Briefing{}, &model.MalformedResponseError{Key: key, Missing: missing, Attempts: maxAttempts}
	}
	a.metrics.ObserveBriefing("error")
	return model.Briefing{}, fmt.Errorf("failed to generate briefing for %s after %d attempts: %w", key, maxAttempts, lastErr)
}

func (a *Assembler) analogs(doc model.CountryDayDocument, src AnalogSource, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if src == nil {
		return nil, model.ErrIndexUnavailable
	}
	q := index.Query{K: k, ExcludeID: doc.ID}
	if a.cfg.PastOnly {
		q.Keep = func(d model.CountryDayDocument) bool { return d.Day.Before(doc.Day) }
	}
	return src.Neighbors(doc.ID, q)
}

func (a *Assembler) generate(ctx context.Context, prompt string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	response, err := a.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if response == "" {
		return "", errors.New("empty response")
	}
	return response, nil
}

func analogRefs(results []model.SearchResult) []model.AnalogRef {
	refs := make([]model.AnalogRef, 0, len(results))
	for _, r := range results {
		day, _ := time.Parse(model.DayLayout, r.Day)
		refs = append(refs, model.AnalogRef{
			DocumentID: r.DocumentID,
			Country:    r.Country,
			Day:        day,
			Similarity: r.Similarity,
		})
	}
	return refs
}
