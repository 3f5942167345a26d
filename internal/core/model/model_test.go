package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, _ := time.Parse(DayLayout, s)
	return t
}

func TestWindowContains(t *testing.T) {
	w := NewWindow(day("2025-01-01"), day("2025-01-03"))

	assert.True(t, w.Valid())
	assert.True(t, w.Contains(day("2025-01-01")))
	assert.True(t, w.Contains(day("2025-01-03").Add(23*time.Hour)))
	assert.False(t, w.Contains(day("2024-12-31")))
	assert.False(t, w.Contains(day("2025-01-04")))
}

func TestWindowInverted(t *testing.T) {
	w := NewWindow(day("2025-01-03"), day("2025-01-01"))
	assert.False(t, w.Valid())
}

func TestLookbackWindow(t *testing.T) {
	w := LookbackWindow(time.Date(2025, 1, 7, 15, 30, 0, 0, time.UTC), 7)
	assert.Equal(t, day("2025-01-01"), w.Start)
	assert.Equal(t, day("2025-01-07"), w.End)
}

func TestEventDayTruncatesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	e := Event{Time: time.Date(2025, 1, 2, 3, 0, 0, 0, loc)}
	assert.Equal(t, day("2025-01-01"), e.Day())
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "US-2025-01-02", DocumentID("US", day("2025-01-02")))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&EmbeddingServiceError{DocumentID: "US-2025-01-01", Cause: cause})

	var target *EmbeddingServiceError
	assert.True(t, errors.As(err, &target))
	assert.ErrorIs(t, err, cause)

	mal := &MalformedResponseError{Key: Key{Country: "US", Day: day("2025-01-01")}, Missing: []string{"impact"}, Attempts: 2}
	assert.Contains(t, mal.Error(), "missing impact")
	assert.Contains(t, mal.Error(), "US-2025-01-01")
}

func TestManifestComplete(t *testing.T) {
	m := Manifest{}
	assert.True(t, m.Complete())

	m.DegradedScores = []Key{{Country: "US"}}
	assert.False(t, m.Complete())
}
