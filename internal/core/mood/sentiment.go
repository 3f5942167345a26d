package mood

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/agenthands/moodmap/internal/core/common"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
)

// Estimator supplies the external sentiment for a document.
type Estimator interface {
	Estimate(ctx context.Context, doc model.CountryDayDocument) (float64, error)
}

// SentimentEstimator asks the generation service to rate a document's
// context on [-1, 1].
type SentimentEstimator struct {
	LLM          llm.LLMClient
	Prompt       string
	ContextChars int
	Timeout      time.Duration
	log          *logger.Logger
}

func NewSentimentEstimator(client llm.LLMClient, prompt string, contextChars int, timeout time.Duration, log *logger.Logger) *SentimentEstimator {
	return &SentimentEstimator{
		LLM:          client,
		Prompt:       prompt,
		ContextChars: contextChars,
		Timeout:      timeout,
		log:          logger.OrNop(log).With("component", "sentiment"),
	}
}

func (e *SentimentEstimator) Estimate(ctx context.Context, doc model.CountryDayDocument) (float64, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	response, err := e.LLM.Generate(ctx, fmt.Sprintf(e.Prompt, common.Truncate(doc.TopicDoc, e.ContextChars)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate sentiment for %s: %w", doc.ID, err)
	}
	v, err := ParseSentiment(response)
	if err != nil {
		e.log.Debug("unparseable sentiment reply", "document_id", doc.ID, "response", response)
		return 0, fmt.Errorf("failed to parse sentiment for %s: %w", doc.ID, err)
	}
	return v, nil
}

var numberRe = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d+)?|\.\d+)`)

// ParseSentiment takes the first number in the reply and clamps it to [-1, 1].
func ParseSentiment(response string) (float64, error) {
	m := numberRe.FindString(response)
	if m == "" {
		return 0, fmt.Errorf("no number in response %q", response)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q: %w", m, err)
	}
	return clamp(v), nil
}
