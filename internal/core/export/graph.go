// Package export mirrors run artifacts into the graph store.
package export

import (
	"context"
	"fmt"

	"github.com/agenthands/moodmap/internal/core"
	"github.com/agenthands/moodmap/internal/core/community"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/driver"
	"github.com/agenthands/moodmap/internal/logger"
)

// GraphSink writes Country and CountryDay nodes, HAS_DAY edges and the
// top SIMILAR_TO neighbours of every indexed day.
type GraphSink struct {
	Driver       driver.GraphDriver
	CountryNames map[string]string
	// Neighbors is the number of SIMILAR_TO edges written per indexed day.
	Neighbors int
	// Themes, when set, tags each indexed day with the community it falls
	// into over SIMILAR_TO links of at least ThemeSimilarity.
	Themes          *community.LabelPropagationDetector
	ThemeSimilarity float64
	log             *logger.Logger
}

func NewGraphSink(d driver.GraphDriver, countryNames map[string]string, neighbors int, log *logger.Logger) *GraphSink {
	return &GraphSink{
		Driver:       d,
		CountryNames: countryNames,
		Neighbors:    neighbors,
		log:          logger.OrNop(log).With("component", "graph_sink"),
	}
}

func (s *GraphSink) Name() string { return "graph" }

func (s *GraphSink) WriteRun(ctx context.Context, res *core.Result) error {
	if len(res.Documents) == 0 {
		return nil
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveCountriesQuery, map[string]interface{}{"rows": s.countryRows(res.Documents)}); err != nil {
		return fmt.Errorf("failed to save countries: %w", err)
	}
	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveCountryDaysQuery, map[string]interface{}{"rows": dayRows(res)}); err != nil {
		return fmt.Errorf("failed to save country days: %w", err)
	}

	if res.Generation != nil && s.Neighbors > 0 {
		ids, rows := s.similarRows(res)
		if _, err := s.Driver.ExecuteQuery(ctx, driver.DeleteSimilarQuery, map[string]interface{}{"ids": ids}); err != nil {
			return fmt.Errorf("failed to clear similarity edges: %w", err)
		}
		if len(rows) > 0 {
			if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveSimilarQuery, map[string]interface{}{"rows": rows}); err != nil {
				return fmt.Errorf("failed to save similarity edges: %w", err)
			}
		}
	}

	if res.Generation != nil && s.Themes != nil && s.Neighbors > 0 {
		rows, err := s.themeRows(res)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveThemesQuery, map[string]interface{}{"rows": rows}); err != nil {
				return fmt.Errorf("failed to save themes: %w", err)
			}
		}
	}

	if len(res.Briefings) > 0 {
		if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveBriefingsQuery, map[string]interface{}{"rows": briefingRows(res.Briefings)}); err != nil {
			return fmt.Errorf("failed to save briefings: %w", err)
		}
	}

	s.log.Info("exported run to graph", "run_id", res.Manifest.RunID, "days", len(res.Documents), "briefings", len(res.Briefings))
	return nil
}

func (s *GraphSink) countryRows(docs []model.CountryDayDocument) []map[string]interface{} {
	seen := make(map[string]bool)
	var rows []map[string]interface{}
	for _, d := range docs {
		if seen[d.Country] {
			continue
		}
		seen[d.Country] = true
		name := d.Country
		if n, ok := s.CountryNames[d.Country]; ok {
			name = n
		}
		rows = append(rows, map[string]interface{}{"code": d.Country, "name": name})
	}
	return rows
}

func dayRows(res *core.Result) []map[string]interface{} {
	scores := make(map[string]model.MoodScore, len(res.Scores))
	for _, sc := range res.Scores {
		scores[sc.Key().ID()] = sc
	}
	rows := make([]map[string]interface{}, 0, len(res.Documents))
	for _, d := range res.Documents {
		row := map[string]interface{}{
			"id":          d.ID,
			"country":     d.Country,
			"day":         d.Day.Format(model.DayLayout),
			"event_count": d.EventCount,
			"mean_tone":   d.MeanTone,
			"min_tone":    d.MinTone,
			"max_tone":    d.MaxTone,
			"top_labels":  d.TopLabels,
			"top_people":  d.TopActors,
			"topic_doc":   d.TopicDoc,
			"run_id":      res.Manifest.RunID,
		}
		if sc, ok := scores[d.ID]; ok {
			row["composite_score"] = sc.Composite
			row["heuristic_tone"] = sc.HeuristicTone
			row["category"] = string(sc.Category)
			row["degraded"] = sc.Degraded
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *GraphSink) similarRows(res *core.Result) ([]string, []map[string]interface{}) {
	gen := res.Generation
	var ids []string
	var rows []map[string]interface{}
	for _, d := range gen.Documents() {
		ids = append(ids, d.ID)
		matches, err := gen.QueryByDocument(d.ID, s.Neighbors, true)
		if err != nil {
			s.log.Warn("skipping neighbours", "document_id", d.ID, "error", err)
			continue
		}
		for rank, m := range matches {
			rows = append(rows, map[string]interface{}{
				"source_id":     d.ID,
				"target_id":     m.DocumentID,
				"similarity":    m.Similarity,
				"rank":          rank + 1,
				"generation_id": gen.ID,
			})
		}
	}
	return ids, rows
}

func (s *GraphSink) themeRows(res *core.Result) ([]map[string]interface{}, error) {
	themes, err := s.Themes.FromGeneration(res.Generation, s.Neighbors, s.ThemeSimilarity)
	if err != nil {
		return nil, fmt.Errorf("failed to detect themes: %w", err)
	}
	var rows []map[string]interface{}
	for _, th := range themes {
		for _, id := range th.Members {
			rows = append(rows, map[string]interface{}{
				"id":            id,
				"theme":         th.ID,
				"theme_size":    len(th.Members),
				"generation_id": res.Generation.ID,
			})
		}
	}
	s.log.Debug("detected themes", "themes", len(themes), "tagged", len(rows))
	return rows, nil
}

func briefingRows(briefings []model.Briefing) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(briefings))
	for _, b := range briefings {
		rows = append(rows, map[string]interface{}{
			"id":            b.Key().ID(),
			"what_happened": b.Sections.WhatHappened,
			"key_drivers":   b.Sections.KeyDrivers,
			"impact":        b.Sections.Impact,
			"what_to_watch": b.Sections.WhatToWatch,
			"generated_at":  b.GeneratedAt,
		})
	}
	return rows
}
