package model

import "time"

type MoodCategory string

const (
	MoodVeryNegative MoodCategory = "very negative"
	MoodNegative     MoodCategory = "negative"
	MoodNeutral      MoodCategory = "neutral"
	MoodPositive     MoodCategory = "positive"
	MoodVeryPositive MoodCategory = "very positive"
)

type MoodScore struct {
	Country           string       `json:"country"`
	Day               time.Time    `json:"day"`
	HeuristicTone     float64      `json:"heuristic_tone_normalized"`
	ExternalSentiment *float64     `json:"external_sentiment,omitempty"`
	Composite         float64      `json:"composite_score"`
	Category          MoodCategory `json:"category"`
	// Degraded is set when no external sentiment was available and the
	// composite fell back to the heuristic tone alone.
	Degraded bool `json:"degraded"`
}

func (s MoodScore) Key() Key {
	return Key{Country: s.Country, Day: s.Day}
}
