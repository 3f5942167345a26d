package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
)

// Documents returns every stored document ordered by day then country.
func (s *Store) Documents(ctx context.Context) ([]model.CountryDayDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, day, event_count, mean_tone, min_tone, max_tone, top_labels, top_actors, sample_urls, topic_doc
		FROM documents ORDER BY day, country`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []model.CountryDayDocument
	for rows.Next() {
		var d model.CountryDayDocument
		var day, labels, actors, urls string
		if err := rows.Scan(&d.ID, &d.Country, &day, &d.EventCount, &d.MeanTone, &d.MinTone, &d.MaxTone, &labels, &actors, &urls, &d.TopicDoc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Day = parseDay(day)
		if err := json.Unmarshal([]byte(labels), &d.TopLabels); err != nil {
			return nil, fmt.Errorf("decode top_labels of %s: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(actors), &d.TopActors); err != nil {
			return nil, fmt.Errorf("decode top_actors of %s: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(urls), &d.SampleURLs); err != nil {
			return nil, fmt.Errorf("decode sample_urls of %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Embeddings returns the stored vectors. They may come from several
// generations when documents were re-embedded across runs.
func (s *Store) Embeddings(ctx context.Context) ([]model.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT document_id, vector, generated_at FROM embeddings ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.EmbeddingRecord
	for rows.Next() {
		var r model.EmbeddingRecord
		var blob []byte
		var at string
		if err := rows.Scan(&r.DocumentID, &blob, &at); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if r.Vector, err = llm.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", r.DocumentID, err)
		}
		r.GeneratedAt = parseTime(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestDay is the most recent day with a mood score.
func (s *Store) LatestDay(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var day sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(day) FROM mood_scores`).Scan(&day); err != nil {
		return time.Time{}, fmt.Errorf("query latest day: %w", err)
	}
	if !day.Valid {
		return time.Time{}, ErrNotFound
	}
	return parseDay(day.String), nil
}

// Moods returns the scores of one day ordered by country.
func (s *Store) Moods(ctx context.Context, day time.Time) ([]model.MoodScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT country, day, heuristic_tone, external_sentiment, composite_score, category, degraded
		FROM mood_scores WHERE day = ? ORDER BY country`, formatDay(day))
	if err != nil {
		return nil, fmt.Errorf("query moods: %w", err)
	}
	defer rows.Close()

	out := []model.MoodScore{}
	for rows.Next() {
		var sc model.MoodScore
		var d, category string
		var ext sql.NullFloat64
		if err := rows.Scan(&sc.Country, &d, &sc.HeuristicTone, &ext, &sc.Composite, &category, &sc.Degraded); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		sc.Day = parseDay(d)
		sc.Category = model.MoodCategory(category)
		if ext.Valid {
			v := ext.Float64
			sc.ExternalSentiment = &v
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) Briefing(ctx context.Context, country string, day time.Time) (model.Briefing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := model.Briefing{Country: country, Day: model.TruncateDay(day)}
	var at string
	err := s.db.QueryRowContext(ctx, `
		SELECT what_happened, key_drivers, impact, what_to_watch, model, attempts, generated_at
		FROM briefings WHERE country = ? AND day = ?`, country, formatDay(day),
	).Scan(&b.Sections.WhatHappened, &b.Sections.KeyDrivers, &b.Sections.Impact, &b.Sections.WhatToWatch, &b.Model, &b.Attempts, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Briefing{}, ErrNotFound
	}
	if err != nil {
		return model.Briefing{}, fmt.Errorf("query briefing: %w", err)
	}
	b.GeneratedAt = parseTime(at)

	rows, err := s.db.QueryContext(ctx, `
		SELECT analog_id, analog_country, analog_day, similarity
		FROM analogs WHERE country = ? AND day = ? ORDER BY rank`, country, formatDay(day))
	if err != nil {
		return model.Briefing{}, fmt.Errorf("query analogs: %w", err)
	}
	defer rows.Close()

	b.Analogs = []model.AnalogRef{}
	for rows.Next() {
		var a model.AnalogRef
		var d string
		if err := rows.Scan(&a.DocumentID, &a.Country, &d, &a.Similarity); err != nil {
			return model.Briefing{}, fmt.Errorf("scan analog: %w", err)
		}
		a.Day = parseDay(d)
		b.Analogs = append(b.Analogs, a)
	}
	return b, rows.Err()
}

func (s *Store) Run(ctx context.Context, id string) (model.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT manifest FROM runs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Manifest{}, ErrNotFound
	}
	if err != nil {
		return model.Manifest{}, fmt.Errorf("query run: %w", err)
	}

	var m model.Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return model.Manifest{}, fmt.Errorf("decode manifest %s: %w", id, err)
	}
	return m, nil
}
