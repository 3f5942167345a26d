package model

import "time"

type CountryDayDocument struct {
	ID         string    `json:"id"`
	Country    string    `json:"country"`
	Day        time.Time `json:"day"`
	EventCount int       `json:"event_count"`
	MeanTone   float64   `json:"mean_tone"`
	MinTone    float64   `json:"min_tone"`
	MaxTone    float64   `json:"max_tone"`
	TopLabels  []string  `json:"top_labels"`
	TopActors  []string  `json:"top_actors,omitempty"`
	SampleURLs []string  `json:"sample_urls,omitempty"`
	TopicDoc   string    `json:"topic_doc"`
}

func (d CountryDayDocument) Key() Key {
	return Key{Country: d.Country, Day: d.Day}
}

type EmbeddingRecord struct {
	DocumentID  string    `json:"document_id"`
	Vector      []float32 `json:"vector"`
	GeneratedAt time.Time `json:"generated_at"`
}
