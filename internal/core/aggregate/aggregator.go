// Package aggregate collapses raw events into one document per (country, day).
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/logger"
)

type Config struct {
	TopLabels     int
	TopActors     int
	SampleURLs    int
	TonePrecision int
	Concurrency   int
	CountryNames  map[string]string
}

func DefaultConfig() Config {
	return Config{
		TopLabels:     5,
		TopActors:     10,
		TonePrecision: 2,
		Concurrency:   8,
	}
}

type Aggregator struct {
	cfg Config
	log *logger.Logger
}

func NewAggregator(cfg Config, log *logger.Logger) *Aggregator {
	if cfg.TopLabels <= 0 {
		cfg.TopLabels = 5
	}
	if cfg.TonePrecision < 0 {
		cfg.TonePrecision = 2
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Aggregator{cfg: cfg, log: logger.OrNop(log).With("component", "aggregator")}
}

type partition struct {
	key    model.Key
	events []model.Event
}

// Aggregate validates every event against the window, partitions by
// (country, day) keeping source order, and summarises partitions concurrently.
// Output is sorted by day then country.
func (a *Aggregator) Aggregate(ctx context.Context, events []model.Event, window model.Window) ([]model.CountryDayDocument, error) {
	if !window.Valid() {
		return nil, &model.OutOfRangeError{Window: window}
	}

	index := make(map[model.Key]int)
	var parts []*partition
	for _, e := range events {
		day := e.Day()
		if !window.Contains(day) {
			return nil, &model.OutOfRangeError{Day: day, Window: window}
		}
		key := model.Key{Country: e.Country, Day: day}
		i, ok := index[key]
		if !ok {
			i = len(parts)
			index[key] = i
			parts = append(parts, &partition{key: key})
		}
		parts[i].events = append(parts[i].events, e)
	}

	results := make([]*model.CountryDayDocument, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, p := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := a.Summarize(p.key, p.events)
			if err != nil {
				var empty *model.EmptyPartitionError
				if errors.As(err, &empty) {
					return nil
				}
				return err
			}
			results[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}

	docs := make([]model.CountryDayDocument, 0, len(results))
	for _, d := range results {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].Day.Equal(docs[j].Day) {
			return docs[i].Day.Before(docs[j].Day)
		}
		return docs[i].Country < docs[j].Country
	})

	a.log.Info("aggregated events", "events", len(events), "documents", len(docs), "window", window.String())
	return docs, nil
}

// Summarize builds the document for a single partition. Events must be in source order.
func (a *Aggregator) Summarize(key model.Key, events []model.Event) (model.CountryDayDocument, error) {
	if len(events) == 0 {
		return model.CountryDayDocument{}, &model.EmptyPartitionError{Key: key}
	}

	var sum float64
	minTone, maxTone := math.Inf(1), math.Inf(-1)
	labels := make([]string, 0, len(events))
	var actors, urls []string
	for _, e := range events {
		sum += e.Tone
		minTone = math.Min(minTone, e.Tone)
		maxTone = math.Max(maxTone, e.Tone)
		labels = append(labels, e.Label)
		for _, actor := range e.Actors {
			if keepActor(actor) {
				actors = append(actors, strings.TrimSpace(actor))
			}
		}
		if e.URL != "" {
			urls = append(urls, e.URL)
		}
	}

	doc := model.CountryDayDocument{
		ID:         key.ID(),
		Country:    key.Country,
		Day:        key.Day,
		EventCount: len(events),
		MeanTone:   sum / float64(len(events)),
		MinTone:    minTone,
		MaxTone:    maxTone,
		TopLabels:  TopK(labels, a.cfg.TopLabels),
		TopActors:  TopK(actors, a.cfg.TopActors),
		SampleURLs: firstDistinct(urls, a.cfg.SampleURLs),
	}
	doc.TopicDoc = a.TopicDoc(doc)
	return doc, nil
}

// TopicDoc renders the fixed template. Identical documents always render to identical bytes.
func (a *Aggregator) TopicDoc(d model.CountryDayDocument) string {
	name := d.Country
	if n, ok := a.cfg.CountryNames[d.Country]; ok && n != "" {
		name = n
	}

	var sb strings.Builder
	sb.WriteString("Country: ")
	sb.WriteString(name)
	sb.WriteString(" | Date: ")
	sb.WriteString(d.Day.Format(model.DayLayout))
	sb.WriteString(" | Headlines: ")
	sb.WriteString(strconv.Itoa(d.EventCount))
	sb.WriteString(" | Tone avg/min/max: ")
	sb.WriteString(a.formatTone(d.MeanTone))
	sb.WriteString("/")
	sb.WriteString(a.formatTone(d.MinTone))
	sb.WriteString("/")
	sb.WriteString(a.formatTone(d.MaxTone))
	sb.WriteString(" | Top Labels: ")
	sb.WriteString(strings.Join(d.TopLabels, ", "))
	if len(d.TopActors) > 0 {
		sb.WriteString(" | Top People: ")
		sb.WriteString(strings.Join(d.TopActors, ", "))
	}
	if len(d.SampleURLs) > 0 {
		sb.WriteString(" | Sample URLs: ")
		sb.WriteString(strings.Join(d.SampleURLs, " | "))
	}
	return sb.String()
}

func (a *Aggregator) formatTone(v float64) string {
	s := strconv.FormatFloat(v, 'f', a.cfg.TonePrecision, 64)
	// avoid "-0.00"
	if z := strconv.FormatFloat(0, 'f', a.cfg.TonePrecision, 64); s == "-"+z {
		return z
	}
	return s
}

func firstDistinct(items []string, n int) []string {
	if n <= 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	return out
}
