package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/moodmap/internal/core/model"
)

const sample = `{"country": "us", "time": "2025-01-01T10:00:00Z", "tone": -50, "label": "wildfire", "actors": ["Gavin Newsom"], "url": "https://example.com/a"}

{"country": "US", "time": "20250101", "tone": -30, "label": "wildfire"}
{"country": "FR", "time": "2025-01-02", "tone": 4.5, "label": "election"}
{"country": "DE", "time": "20250105120000", "tone": 0, "label": "budget"}
`

func TestRead(t *testing.T) {
	events, err := NewReader(nil, nil).Read(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "US", events[0].Country)
	assert.Equal(t, []string{"Gavin Newsom"}, events[0].Actors)
	assert.Equal(t, "https://example.com/a", events[0].URL)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), events[1].Time)
	assert.Equal(t, 4.5, events[2].Tone)
	assert.Equal(t, time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC), events[3].Time)
}

func TestReadFiltersWindow(t *testing.T) {
	w := model.NewWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	events, err := NewReader(&w, nil).Read(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestReadRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"bad json":   `{"country": "US",`,
		"no country": `{"time": "2025-01-01", "tone": 1}`,
		"no tone":    `{"country": "US", "time": "2025-01-01"}`,
		"bad time":   `{"country": "US", "time": "yesterday", "tone": 1}`,
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(nil, nil).Read(context.Background(), strings.NewReader(sample+line+"\n"))
			assert.ErrorContains(t, err, "line 6")
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	events, err := NewReader(nil, nil).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, events, 4)

	_, err = NewReader(nil, nil).ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
