package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockEmbedder derives a small non-zero vector from the text so different
// documents land at different points.
type MockEmbedder struct {
	Err error
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []float32{
		float32(len(text)),
		float32(strings.Count(text, "US")),
		float32(strings.Count(text, "FR")) + 1,
	}, nil
}

// MockLLM answers by prompt prefix. Responses for a prefix are consumed in
// order; the last one repeats.
type MockLLM struct {
	mu        sync.Mutex
	Responses map[string][]string
	Fail      map[string]error
	Prompts   []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	for marker, err := range m.Fail {
		if strings.Contains(prompt, marker) {
			return "", err
		}
	}
	prefix, _, _ := strings.Cut(prompt, " ")
	queue := m.Responses[prefix]
	if len(queue) == 0 {
		return "", errors.New("no response for " + prefix)
	}
	resp := queue[0]
	if len(queue) > 1 {
		m.Responses[prefix] = queue[1:]
	}
	return resp, nil
}

type MockSink struct {
	mu     sync.Mutex
	name   string
	Err    error
	Writes []*Result
}

func (s *MockSink) Name() string { return s.name }

func (s *MockSink) WriteRun(ctx context.Context, res *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, res)
	return s.Err
}
