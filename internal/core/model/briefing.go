package model

import "time"

// Sections is the closed four-part briefing contract. All fields are required.
type Sections struct {
	WhatHappened string `json:"what_happened"`
	KeyDrivers   string `json:"key_drivers"`
	Impact       string `json:"impact"`
	WhatToWatch  string `json:"what_to_watch"`
}

const (
	SectionWhatHappened = "what_happened"
	SectionKeyDrivers   = "key_drivers"
	SectionImpact       = "impact"
	SectionWhatToWatch  = "what_to_watch"
)

// SectionNames lists the sections in presentation order.
var SectionNames = []string{SectionWhatHappened, SectionKeyDrivers, SectionImpact, SectionWhatToWatch}

type AnalogRef struct {
	DocumentID string    `json:"document_id"`
	Country    string    `json:"country"`
	Day        time.Time `json:"day"`
	Similarity float64   `json:"similarity"`
}

type Briefing struct {
	Country     string      `json:"country"`
	Day         time.Time   `json:"day"`
	Sections    Sections    `json:"sections"`
	Analogs     []AnalogRef `json:"analog_references"`
	Model       string      `json:"model,omitempty"`
	Attempts    int         `json:"attempts"`
	GeneratedAt time.Time   `json:"generated_at"`
}

func (b Briefing) Key() Key {
	return Key{Country: b.Country, Day: b.Day}
}
