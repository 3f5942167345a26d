package index

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agenthands/moodmap/internal/core/model"
)

// MockEmbedder returns fixed vectors keyed by text.
type MockEmbedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Fail    map[string]error
	Calls   int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Fail[text]; ok {
		return nil, err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("unknown text")
}

// MockBatchEmbedder fails whole batches that contain a failing text.
type MockBatchEmbedder struct {
	MockEmbedder
	BatchCalls int
}

func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.BatchCalls++
	m.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err, ok := m.Fail[t]; ok {
			return nil, err
		}
		out[i] = m.Vectors[t]
	}
	return out, nil
}

// SlowEmbedder blocks until the call context is done.
type SlowEmbedder struct{}

func (SlowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testDay(s string) time.Time {
	t, err := time.Parse(model.DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testDoc(country, day string) model.CountryDayDocument {
	d := testDay(day)
	return model.CountryDayDocument{
		ID:         model.DocumentID(country, d),
		Country:    country,
		Day:        d,
		EventCount: 1,
		TopicDoc:   "doc " + country + " " + day,
	}
}
