package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[mood]
weight = 0.25

[mood.thresholds]
very_negative = -0.5
negative = -0.1
neutral = 0.1
positive = 0.5

[pipeline.country_names]
US = "United States"

[memgraph]
uri = "bolt://localhost:7687"
theme_similarity = 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 0.25, cfg.Mood.Weight)
	assert.Equal(t, -0.5, cfg.Mood.Thresholds.VeryNegative)
	assert.Equal(t, "United States", cfg.Pipeline.CountryNames["US"])
	assert.Equal(t, "bolt://localhost:7687", cfg.Memgraph.URI)
	assert.Equal(t, 0.9, cfg.Memgraph.ThemeSimilarity)
	assert.Equal(t, 5, cfg.Memgraph.Neighbors)

	// untouched sections keep their defaults
	assert.Equal(t, 100.0, cfg.Mood.ToneScale)
	assert.Equal(t, 5, cfg.Briefing.Analogs)
	assert.Equal(t, 3000, cfg.Index.MaxChars)
	assert.NotEmpty(t, cfg.Prompts.Briefing)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("LLM_EMBEDDING_PROVIDER", "openai")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "9090")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "openai", cfg.LLM.EmbeddingProvider)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"weight above one", func(c *Config) { c.Mood.Weight = 1.5 }},
		{"negative weight", func(c *Config) { c.Mood.Weight = -0.1 }},
		{"zero tone scale", func(c *Config) { c.Mood.ToneScale = 0 }},
		{"unordered thresholds", func(c *Config) { c.Mood.Thresholds.Negative = 0.5 }},
		{"threshold below range", func(c *Config) { c.Mood.Thresholds.VeryNegative = -2 }},
		{"no labels", func(c *Config) { c.Pipeline.TopLabels = 0 }},
		{"theme similarity above one", func(c *Config) { c.Memgraph.ThemeSimilarity = 1.2 }},
		{"negative neighbours", func(c *Config) { c.Memgraph.Neighbors = -1 }},
		{"no index workers", func(c *Config) { c.Index.Concurrency = 0 }},
	}

	assert.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
