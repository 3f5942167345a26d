// Package mood fuses the heuristic tone of a country-day with an external
// sentiment signal into one composite score and category.
package mood

import (
	"fmt"
	"math"

	"github.com/agenthands/moodmap/internal/core/model"
)

// Thresholds are the upper bounds of the first four categories:
// x < VeryNegative, x < Negative, x <= Neutral, x <= Positive, else very positive.
type Thresholds struct {
	VeryNegative float64
	Negative     float64
	Neutral      float64
	Positive     float64
}

type Config struct {
	ToneScale  float64
	Weight     float64
	Thresholds Thresholds
}

func DefaultConfig() Config {
	return Config{
		ToneScale: 100,
		Weight:    0.5,
		Thresholds: Thresholds{
			VeryNegative: -0.6,
			Negative:     -0.2,
			Neutral:      0.2,
			Positive:     0.6,
		},
	}
}

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if !(cfg.ToneScale > 0) || math.IsInf(cfg.ToneScale, 0) {
		return nil, fmt.Errorf("tone scale must be positive and finite, got %v", cfg.ToneScale)
	}
	if !(cfg.Weight >= 0 && cfg.Weight <= 1) {
		return nil, fmt.Errorf("weight must be within [0,1], got %v", cfg.Weight)
	}
	t := cfg.Thresholds
	if !(-1 <= t.VeryNegative && t.VeryNegative <= t.Negative && t.Negative <= t.Neutral && t.Neutral <= t.Positive && t.Positive <= 1) {
		return nil, fmt.Errorf("thresholds must be ordered within [-1,1], got %+v", t)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score is pure: the same document and sentiment always give the same score.
// A nil or non-finite external sentiment falls back to the heuristic alone
// and marks the score degraded.
func (s *Scorer) Score(doc model.CountryDayDocument, external *float64) model.MoodScore {
	heuristic := 0.0
	if !math.IsNaN(doc.MeanTone) {
		heuristic = clamp(doc.MeanTone / s.cfg.ToneScale)
	}

	score := model.MoodScore{
		Country:       doc.Country,
		Day:           doc.Day,
		HeuristicTone: heuristic,
	}
	if external == nil || math.IsNaN(*external) {
		score.Composite = heuristic
		score.Degraded = true
	} else {
		ext := clamp(*external)
		score.ExternalSentiment = &ext
		score.Composite = clamp(s.cfg.Weight*ext + (1-s.cfg.Weight)*heuristic)
	}
	score.Category = s.Categorize(score.Composite)
	return score
}

func (s *Scorer) Categorize(x float64) model.MoodCategory {
	t := s.cfg.Thresholds
	switch {
	case x < t.VeryNegative:
		return model.MoodVeryNegative
	case x < t.Negative:
		return model.MoodNegative
	case x <= t.Neutral:
		return model.MoodNeutral
	case x <= t.Positive:
		return model.MoodPositive
	default:
		return model.MoodVeryPositive
	}
}

// clamp also maps the infinities to the interval ends.
func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
