// Package store persists run artifacts in SQLite and serves them back to the read API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agenthands/moodmap/internal/core"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
)

// ErrNotFound is returned by the read methods when no row matches.
var ErrNotFound = errors.New("not found")

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates the database and schema if needed. ":memory:" gives a
// private in-memory database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	memory := dbPath == ":memory:"
	if memory {
		// a named shared-cache database keeps every pooled connection on the same data
		connStr = fmt.Sprintf("file:moodmap-%s?mode=memory&cache=shared", uuid.New().String())
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		day TEXT NOT NULL,
		event_count INTEGER NOT NULL,
		mean_tone REAL NOT NULL,
		min_tone REAL NOT NULL,
		max_tone REAL NOT NULL,
		top_labels TEXT NOT NULL,
		top_actors TEXT NOT NULL,
		sample_urls TEXT NOT NULL,
		topic_doc TEXT NOT NULL,
		run_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_day ON documents(day);

	CREATE TABLE IF NOT EXISTS embeddings (
		document_id TEXT PRIMARY KEY,
		generation_id TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector BLOB NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mood_scores (
		country TEXT NOT NULL,
		day TEXT NOT NULL,
		heuristic_tone REAL NOT NULL,
		external_sentiment REAL,
		composite_score REAL NOT NULL,
		category TEXT NOT NULL,
		degraded INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		PRIMARY KEY (country, day)
	);
	CREATE INDEX IF NOT EXISTS idx_mood_scores_day ON mood_scores(day);

	CREATE TABLE IF NOT EXISTS briefings (
		country TEXT NOT NULL,
		day TEXT NOT NULL,
		what_happened TEXT NOT NULL,
		key_drivers TEXT NOT NULL,
		impact TEXT NOT NULL,
		what_to_watch TEXT NOT NULL,
		model TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		generated_at TEXT NOT NULL,
		run_id TEXT NOT NULL,
		PRIMARY KEY (country, day)
	);

	CREATE TABLE IF NOT EXISTS analogs (
		country TEXT NOT NULL,
		day TEXT NOT NULL,
		rank INTEGER NOT NULL,
		analog_id TEXT NOT NULL,
		analog_country TEXT NOT NULL,
		analog_day TEXT NOT NULL,
		similarity REAL NOT NULL,
		PRIMARY KEY (country, day, rank)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		manifest TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) Name() string { return "store" }

// WriteRun upserts every artifact of a run in one transaction. Rows for
// (country, day) keys produced again replace the earlier ones.
func (s *Store) WriteRun(ctx context.Context, res *core.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := res.Manifest.RunID
	for _, d := range res.Documents {
		if err := saveDocument(ctx, tx, d, runID); err != nil {
			return err
		}
	}
	if res.Generation != nil {
		for _, r := range res.Generation.Records() {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO embeddings (document_id, generation_id, dim, vector, generated_at)
				VALUES (?, ?, ?, ?, ?)`,
				r.DocumentID, res.Generation.ID, len(r.Vector), llm.EncodeVector(r.Vector), formatTime(r.GeneratedAt),
			); err != nil {
				return fmt.Errorf("save embedding %s: %w", r.DocumentID, err)
			}
		}
	}
	for _, sc := range res.Scores {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO mood_scores (country, day, heuristic_tone, external_sentiment, composite_score, category, degraded, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Country, formatDay(sc.Day), sc.HeuristicTone, sc.ExternalSentiment, sc.Composite, string(sc.Category), sc.Degraded, runID,
		); err != nil {
			return fmt.Errorf("save score %s: %w", sc.Key(), err)
		}
	}
	for _, b := range res.Briefings {
		if err := saveBriefing(ctx, tx, b, runID); err != nil {
			return err
		}
	}

	manifest, err := json.Marshal(res.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	m := res.Manifest
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, window_start, window_end, started_at, finished_at, manifest)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.RunID, formatDay(m.Window.Start), formatDay(m.Window.End), formatTime(m.StartedAt), formatTime(m.FinishedAt), string(manifest),
	); err != nil {
		return fmt.Errorf("save run %s: %w", m.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", runID, err)
	}
	return nil
}

func saveDocument(ctx context.Context, tx *sql.Tx, d model.CountryDayDocument, runID string) error {
	labels, _ := json.Marshal(nonNil(d.TopLabels))
	actors, _ := json.Marshal(nonNil(d.TopActors))
	urls, _ := json.Marshal(nonNil(d.SampleURLs))
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, country, day, event_count, mean_tone, min_tone, max_tone, top_labels, top_actors, sample_urls, topic_doc, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Country, formatDay(d.Day), d.EventCount, d.MeanTone, d.MinTone, d.MaxTone,
		string(labels), string(actors), string(urls), d.TopicDoc, runID,
	); err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	// A rewritten document drops its old vector; the current generation
	// writes a fresh one if it embedded the document.
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE document_id = ?`, d.ID); err != nil {
		return fmt.Errorf("clear embedding %s: %w", d.ID, err)
	}
	return nil
}

func saveBriefing(ctx context.Context, tx *sql.Tx, b model.Briefing, runID string) error {
	day := formatDay(b.Day)
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO briefings (country, day, what_happened, key_drivers, impact, what_to_watch, model, attempts, generated_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Country, day, b.Sections.WhatHappened, b.Sections.KeyDrivers, b.Sections.Impact, b.Sections.WhatToWatch,
		b.Model, b.Attempts, formatTime(b.GeneratedAt), runID,
	); err != nil {
		return fmt.Errorf("save briefing %s: %w", b.Key(), err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analogs WHERE country = ? AND day = ?`, b.Country, day); err != nil {
		return fmt.Errorf("clear analogs %s: %w", b.Key(), err)
	}
	for i, a := range b.Analogs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO analogs (country, day, rank, analog_id, analog_country, analog_day, similarity)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Country, day, i+1, a.DocumentID, a.Country, formatDay(a.Day), a.Similarity,
		); err != nil {
			return fmt.Errorf("save analog %s -> %s: %w", b.Key(), a.DocumentID, err)
		}
	}
	return nil
}

func formatDay(t time.Time) string {
	return t.UTC().Format(model.DayLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDay(s string) time.Time {
	t, _ := time.Parse(model.DayLayout, s)
	return t
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
