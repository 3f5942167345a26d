package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/moodmap/internal/core/aggregate"
	"github.com/agenthands/moodmap/internal/core/briefing"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/core/mood"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
)

// Result holds every artifact of one run.
type Result struct {
	Manifest   model.Manifest
	Documents  []model.CountryDayDocument
	Scores     []model.MoodScore
	Briefings  []model.Briefing
	Generation *index.Generation
}

// Sink receives the artifacts of a finished run. A failing sink is reported
// in the manifest and does not affect other sinks.
type Sink interface {
	Name() string
	WriteRun(ctx context.Context, res *Result) error
}

type Options struct {
	ScoreConcurrency    int
	BriefingConcurrency int
	Analogs             int
	// BriefingTopN limits briefings to the N busiest countries on the
	// window's last day. Zero briefs every country on that day.
	BriefingTopN int
}

type Pipeline struct {
	Aggregator *aggregate.Aggregator
	Builder    *index.Builder
	Handle     *index.Handle
	Scorer     *mood.Scorer
	Sentiment  mood.Estimator
	Assembler  *briefing.Assembler
	Sinks      []Sink

	NewID func() string

	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewPipeline(agg *aggregate.Aggregator, builder *index.Builder, handle *index.Handle, scorer *mood.Scorer, sentiment mood.Estimator, assembler *briefing.Assembler, opts Options, log *logger.Logger, m *metrics.Metrics, sinks ...Sink) *Pipeline {
	if opts.ScoreConcurrency <= 0 {
		opts.ScoreConcurrency = 1
	}
	if opts.BriefingConcurrency <= 0 {
		opts.BriefingConcurrency = 1
	}
	if handle == nil {
		handle = &index.Handle{}
	}
	return &Pipeline{
		Aggregator: agg,
		Builder:    builder,
		Handle:     handle,
		Scorer:     scorer,
		Sentiment:  sentiment,
		Assembler:  assembler,
		Sinks:      sinks,
		NewID:      func() string { return uuid.New().String() },
		opts:       opts,
		log:        logger.OrNop(log).With("component", "pipeline"),
		metrics:    m,
	}
}

// Run processes one window. Only structural failures return an error: an
// invalid window, an index nobody could be embedded into, or cancellation.
// Everything else is recorded in the manifest.
func (p *Pipeline) Run(ctx context.Context, events []model.Event, window model.Window) (*Result, error) {
	started := time.Now().UTC()
	res := &Result{Manifest: model.Manifest{
		RunID:     p.NewID(),
		Window:    window,
		StartedAt: started,
		Events:    len(events),
	}}
	log := p.log.With("run_id", res.Manifest.RunID)
	log.Info("starting run", "window", window.String(), "events", len(events))
	p.metrics.AddEvents(len(events))

	docs, err := p.Aggregator.Aggregate(ctx, events, window)
	if err != nil {
		return nil, err
	}
	res.Documents = docs
	res.Manifest.Documents = len(docs)
	p.metrics.AddDocuments(len(docs))

	gen, err := p.Builder.Build(ctx, docs)
	if err != nil {
		return nil, err
	}
	p.Handle.Publish(gen)
	p.metrics.SetIndexSize(gen.Len())
	res.Generation = gen
	res.Manifest.GenerationID = gen.ID
	res.Manifest.Indexed = gen.Len()
	res.Manifest.IndexIncomplete = gen.Incomplete()
	res.Manifest.MissingIndex = indexFailures(docs, gen.Failures())

	if res.Scores, err = p.score(ctx, docs); err != nil {
		return nil, err
	}
	res.Manifest.Scores = len(res.Scores)
	for _, s := range res.Scores {
		if s.Degraded {
			res.Manifest.DegradedScores = append(res.Manifest.DegradedScores, s.Key())
		}
	}

	if p.Assembler != nil {
		briefings, failures, err := p.brief(ctx, docs, res.Scores, gen)
		if err != nil {
			return nil, err
		}
		res.Briefings = briefings
		res.Manifest.Briefings = len(briefings)
		res.Manifest.MissingBriefings = failures
	}

	res.Manifest.FinishedAt = time.Now().UTC()
	for _, sink := range p.Sinks {
		if err := sink.WriteRun(ctx, res); err != nil {
			log.Error("sink failed", "sink", sink.Name(), "error", err)
			res.Manifest.SinkErrors = append(res.Manifest.SinkErrors, fmt.Sprintf("%s: %v", sink.Name(), err))
		}
	}

	p.metrics.ObserveRun(res.Manifest.FinishedAt.Sub(started))
	log.Info("run finished",
		"documents", res.Manifest.Documents,
		"indexed", res.Manifest.Indexed,
		"degraded_scores", len(res.Manifest.DegradedScores),
		"briefings", res.Manifest.Briefings,
		"missing_briefings", len(res.Manifest.MissingBriefings),
		"complete", res.Manifest.Complete(),
	)
	return res, nil
}

// score runs one score per document. A failed sentiment estimate only
// degrades that document's score.
func (p *Pipeline) score(ctx context.Context, docs []model.CountryDayDocument) ([]model.MoodScore, error) {
	scores := make([]model.MoodScore, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ScoreConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			var external *float64
			if p.Sentiment != nil {
				v, err := p.Sentiment.Estimate(gctx, doc)
				switch {
				case err == nil:
					external = &v
				case gctx.Err() != nil:
					return gctx.Err()
				default:
					p.log.Warn("sentiment unavailable, scoring degraded", "document_id", doc.ID, "error", err)
				}
			}
			scores[i] = p.Scorer.Score(doc, external)
			p.metrics.ObserveScore(string(scores[i].Category), scores[i].Degraded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score documents: %w", err)
	}
	return scores, nil
}

func (p *Pipeline) brief(ctx context.Context, docs []model.CountryDayDocument, scores []model.MoodScore, gen *index.Generation) ([]model.Briefing, []model.KeyFailure, error) {
	targets := BriefingTargets(docs, p.opts.BriefingTopN)
	scoreByID := make(map[string]model.MoodScore, len(scores))
	for i, d := range docs {
		scoreByID[d.ID] = scores[i]
	}

	out := make([]*model.Briefing, len(targets))
	var mu sync.Mutex
	failed := make(map[int]model.KeyFailure)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BriefingConcurrency)
	for i, doc := range targets {
		g.Go(func() error {
			b, err := p.Assembler.Assemble(gctx, doc, scoreByID[doc.ID], gen, p.opts.Analogs)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.log.Warn("no briefing", "document_id", doc.ID, "error", err)
				mu.Lock()
				failed[i] = model.KeyFailure{Key: doc.Key(), Reason: err.Error()}
				mu.Unlock()
				return nil
			}
			out[i] = &b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to assemble briefings: %w", err)
	}

	var briefings []model.Briefing
	var failures []model.KeyFailure
	for i := range targets {
		if out[i] != nil {
			briefings = append(briefings, *out[i])
		} else if f, ok := failed[i]; ok {
			failures = append(failures, f)
		}
	}
	return briefings, failures, nil
}

// BriefingTargets picks the documents of the latest day, busiest first,
// ties by country code. topN <= 0 keeps all of them.
func BriefingTargets(docs []model.CountryDayDocument, topN int) []model.CountryDayDocument {
	var latest time.Time
	for _, d := range docs {
		if d.Day.After(latest) {
			latest = d.Day
		}
	}
	var out []model.CountryDayDocument
	for _, d := range docs {
		if d.Day.Equal(latest) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EventCount != out[j].EventCount {
			return out[i].EventCount > out[j].EventCount
		}
		return out[i].Country < out[j].Country
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func indexFailures(docs []model.CountryDayDocument, failures []error) []model.KeyFailure {
	byID := make(map[string]model.Key, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.Key()
	}
	var out []model.KeyFailure
	for _, err := range failures {
		var id string
		var svc *model.EmbeddingServiceError
		var degenerate *model.DegenerateVectorError
		switch {
		case errors.As(err, &svc):
			id = svc.DocumentID
		case errors.As(err, &degenerate):
			id = degenerate.DocumentID
		}
		if key, ok := byID[id]; ok {
			out = append(out, model.KeyFailure{Key: key, Reason: err.Error()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID() < out[j].Key.ID() })
	return out
}
