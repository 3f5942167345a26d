package model

import "time"

type KeyFailure struct {
	Key    Key    `json:"key"`
	Reason string `json:"reason"`
}

// Manifest reports what a run produced and, per (country, day), what it could not.
type Manifest struct {
	RunID            string       `json:"run_id"`
	Window           Window       `json:"window"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	Events           int          `json:"events"`
	Documents        int          `json:"documents"`
	GenerationID     string       `json:"generation_id"`
	Indexed          int          `json:"indexed"`
	IndexIncomplete  bool         `json:"index_incomplete"`
	MissingIndex     []KeyFailure `json:"missing_index,omitempty"`
	Scores           int          `json:"scores"`
	DegradedScores   []Key        `json:"degraded_scores,omitempty"`
	Briefings        int          `json:"briefings"`
	MissingBriefings []KeyFailure `json:"missing_briefings,omitempty"`
	SinkErrors       []string     `json:"sink_errors,omitempty"`
}

// Complete is true when nothing was skipped or degraded.
func (m Manifest) Complete() bool {
	return !m.IndexIncomplete &&
		len(m.MissingIndex) == 0 &&
		len(m.DegradedScores) == 0 &&
		len(m.MissingBriefings) == 0 &&
		len(m.SinkErrors) == 0
}
