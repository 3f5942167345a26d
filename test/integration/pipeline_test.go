//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/moodmap/internal/config"
	"github.com/agenthands/moodmap/internal/core"
	"github.com/agenthands/moodmap/internal/core/aggregate"
	"github.com/agenthands/moodmap/internal/core/briefing"
	"github.com/agenthands/moodmap/internal/core/export"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/core/mood"
	"github.com/agenthands/moodmap/internal/driver"
	"github.com/agenthands/moodmap/internal/feed"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
	"github.com/agenthands/moodmap/internal/store"
)

const events = `{"country": "US", "time": "2025-01-01", "tone": -50, "label": "wildfire", "actors": ["Gavin Newsom"]}
{"country": "US", "time": "2025-01-01", "tone": -30, "label": "evacuation"}
{"country": "US", "time": "2025-01-02", "tone": -10, "label": "relief fund"}
{"country": "FR", "time": "2025-01-01", "tone": 2, "label": "budget vote"}
{"country": "FR", "time": "2025-01-02", "tone": -4, "label": "strike", "actors": ["Emmanuel Macron"]}
`

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	_ = godotenv.Load("../../.env")
	cfg := config.Default()
	cfg.ApplyEnv()
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		t.Skip("LLM_API_KEY not set")
	}
	if cfg.Memgraph.URI == "" {
		t.Skip("MEMGRAPH_URI not set")
	}
	return cfg
}

func TestPipelineAgainstServices(t *testing.T) {
	cfg := loadConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log, err := logger.New("development")
	require.NoError(t, err)
	m := metrics.New()

	gen, emb, err := llm.NewClient(ctx, cfg.LLM)
	require.NoError(t, err)

	d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, log)
	require.NoError(t, err)
	defer d.Close(ctx)
	require.NoError(t, d.BuildIndices(ctx))

	st, err := store.Open(filepath.Join(t.TempDir(), "moodmap.db"))
	require.NoError(t, err)
	defer st.Close()

	scorer, err := mood.NewScorer(mood.DefaultConfig())
	require.NoError(t, err)

	bcfg := briefing.DefaultConfig()
	bcfg.Model = cfg.LLM.Model
	p := core.NewPipeline(
		aggregate.NewAggregator(aggregate.DefaultConfig(), log),
		index.NewBuilder(emb, index.BuilderConfig{Concurrency: 2, BatchSize: 10, Timeout: 30 * time.Second}, log, m),
		&index.Handle{},
		scorer,
		mood.NewSentimentEstimator(gen, cfg.Prompts.Sentiment, 700, 30*time.Second, log),
		briefing.NewAssembler(gen, cfg.Prompts, bcfg, log, m),
		core.Options{ScoreConcurrency: 2, BriefingConcurrency: 2, Analogs: 3, BriefingTopN: 2},
		log, m,
		st, export.NewGraphSink(d, map[string]string{"US": "United States", "FR": "France"}, 3, log),
	)

	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(events), 0o644))
	window := model.NewWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	evs, err := feed.NewReader(&window, log).ReadFile(ctx, path)
	require.NoError(t, err)

	res, err := p.Run(ctx, evs, window)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Manifest.Documents)
	assert.Empty(t, res.Manifest.SinkErrors)
	t.Logf("manifest: %+v", res.Manifest)

	moods, err := st.Moods(ctx, window.End)
	require.NoError(t, err)
	assert.Len(t, moods, 2)

	out, err := d.ExecuteQuery(ctx, driver.GetSimilarQuery, map[string]interface{}{"id": "US-2025-01-02", "limit": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Records)
}
