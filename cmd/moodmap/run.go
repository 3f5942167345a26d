package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agenthands/moodmap/internal/config"
	"github.com/agenthands/moodmap/internal/core"
	"github.com/agenthands/moodmap/internal/core/briefing"
	"github.com/agenthands/moodmap/internal/core/community"
	"github.com/agenthands/moodmap/internal/core/export"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/core/mood"
	"github.com/agenthands/moodmap/internal/driver"
	"github.com/agenthands/moodmap/internal/feed"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
	"github.com/agenthands/moodmap/internal/store"
)

type runFlags struct {
	events string
	start  string
	end    string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Aggregate a window of events, score it and write briefings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cfg, log, f)
		},
	}
	cmd.Flags().StringVar(&f.events, "events", "", "JSON Lines file of events (required)")
	cmd.Flags().StringVar(&f.start, "start", "", "first day of the window, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "last day of the window, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

func (f runFlags) window(lookbackDays int, now time.Time) (model.Window, error) {
	end := now
	if f.end != "" {
		t, err := time.Parse(model.DayLayout, f.end)
		if err != nil {
			return model.Window{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = t
	}
	if f.start == "" {
		return model.LookbackWindow(end, lookbackDays), nil
	}
	start, err := time.Parse(model.DayLayout, f.start)
	if err != nil {
		return model.Window{}, fmt.Errorf("invalid --start: %w", err)
	}
	return model.NewWindow(start, end), nil
}

func runPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger, f runFlags) error {
	window, err := f.window(cfg.Pipeline.LookbackDays, time.Now().UTC())
	if err != nil {
		return err
	}

	events, err := feed.NewReader(&window, log).ReadFile(ctx, f.events)
	if err != nil {
		return err
	}

	m := metrics.New()
	c, err := newClients(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	scorer, err := newScorer(cfg)
	if err != nil {
		return err
	}
	var sentiment mood.Estimator
	if cfg.Mood.ExternalSignal {
		sentiment = mood.NewSentimentEstimator(c.LLM, cfg.Prompts.Sentiment, cfg.Mood.SentimentContext,
			time.Duration(cfg.Mood.TimeoutSeconds)*time.Second, log)
	}
	assembler := briefing.NewAssembler(c.LLM, cfg.Prompts, briefing.Config{
		ContextChars: cfg.Briefing.ContextChars,
		SnippetChars: cfg.Briefing.SnippetChars,
		PastOnly:     cfg.Briefing.PastOnly,
		Timeout:      time.Duration(cfg.Briefing.TimeoutSeconds) * time.Second,
		Model:        cfg.LLM.Model,
	}, log, m)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	sinks := []core.Sink{st}

	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, log)
		if err != nil {
			return err
		}
		defer d.Close(context.Background())
		if err := d.BuildIndices(ctx); err != nil {
			log.Warn("failed to build graph indices", "error", err)
		}
		gs := export.NewGraphSink(d, cfg.Pipeline.CountryNames, cfg.Memgraph.Neighbors, log)
		if cfg.Memgraph.ThemeSimilarity > 0 {
			gs.Themes = community.NewLabelPropagationDetector()
			gs.ThemeSimilarity = cfg.Memgraph.ThemeSimilarity
		}
		sinks = append(sinks, gs)
	}

	p := core.NewPipeline(
		newAggregator(cfg, log),
		newBuilder(cfg, c.Embedder, log, m),
		&index.Handle{},
		scorer,
		sentiment,
		assembler,
		core.Options{
			ScoreConcurrency:    cfg.Mood.Concurrency,
			BriefingConcurrency: cfg.Briefing.Concurrency,
			Analogs:             cfg.Briefing.Analogs,
			BriefingTopN:        cfg.Briefing.TopN,
		},
		log, m, sinks...,
	)

	res, err := p.Run(ctx, events, window)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Manifest)
}
