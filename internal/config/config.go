package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	EmbeddingProvider string  `toml:"embedding_provider"`
	EmbeddingModel    string  `toml:"embedding_model"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Temperature       float32 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
}

type PipelineConfig struct {
	LookbackDays  int               `toml:"lookback_days"`
	TopLabels     int               `toml:"top_labels"`
	TopActors     int               `toml:"top_actors"`
	SampleURLs    int               `toml:"sample_urls"`
	TonePrecision int               `toml:"tone_precision"`
	Concurrency   int               `toml:"concurrency"`
	CountryNames  map[string]string `toml:"country_names"`
}

type IndexConfig struct {
	Concurrency    int     `toml:"concurrency"`
	BatchSize      int     `toml:"batch_size"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxChars       int     `toml:"max_chars"`
}

type ThresholdsConfig struct {
	VeryNegative float64 `toml:"very_negative"`
	Negative     float64 `toml:"negative"`
	Neutral      float64 `toml:"neutral"`
	Positive     float64 `toml:"positive"`
}

type MoodConfig struct {
	ToneScale        float64          `toml:"tone_scale"`
	Weight           float64          `toml:"weight"`
	Thresholds       ThresholdsConfig `toml:"thresholds"`
	ExternalSignal   bool             `toml:"external_signal"`
	Concurrency      int              `toml:"concurrency"`
	TimeoutSeconds   int              `toml:"timeout_seconds"`
	SentimentContext int              `toml:"sentiment_context_chars"`
}

type BriefingConfig struct {
	Analogs        int  `toml:"analogs"`
	TopN           int  `toml:"top_n"`
	ContextChars   int  `toml:"context_chars"`
	SnippetChars   int  `toml:"snippet_chars"`
	PastOnly       bool `toml:"past_only"`
	Concurrency    int  `toml:"concurrency"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

type Prompts struct {
	Briefing       string `toml:"briefing"`
	BriefingStrict string `toml:"briefing_strict"`
	Sentiment      string `toml:"sentiment"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	// Neighbors is how many SIMILAR_TO edges are written per document.
	Neighbors int `toml:"neighbors"`
	// ThemeSimilarity is the minimum similarity linking days into a theme.
	// Zero disables theme detection.
	ThemeSimilarity float64 `toml:"theme_similarity"`
}

type RedisConfig struct {
	URL        string `toml:"url"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Index    IndexConfig    `toml:"index"`
	Mood     MoodConfig     `toml:"mood"`
	Briefing BriefingConfig `toml:"briefing"`
	Prompts  Prompts        `toml:"prompts"`
	Store    StoreConfig    `toml:"store"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash-001",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0.2,
			MaxTokens:      300,
		},
		Pipeline: PipelineConfig{
			LookbackDays:  7,
			TopLabels:     5,
			TopActors:     10,
			SampleURLs:    0,
			TonePrecision: 2,
			Concurrency:   8,
		},
		Index: IndexConfig{
			Concurrency:    4,
			BatchSize:      25,
			RatePerSecond:  2,
			Burst:          2,
			TimeoutSeconds: 30,
			MaxChars:       3000,
		},
		Mood: MoodConfig{
			ToneScale: 100,
			Weight:    0.5,
			Thresholds: ThresholdsConfig{
				VeryNegative: -0.6,
				Negative:     -0.2,
				Neutral:      0.2,
				Positive:     0.6,
			},
			ExternalSignal:   true,
			Concurrency:      4,
			TimeoutSeconds:   30,
			SentimentContext: 700,
		},
		Briefing: BriefingConfig{
			Analogs:        5,
			TopN:           80,
			ContextChars:   700,
			SnippetChars:   400,
			PastOnly:       true,
			Concurrency:    4,
			TimeoutSeconds: 60,
		},
		Prompts: DefaultPrompts(),
		Store: StoreConfig{
			Path: "moodmap.db",
		},
		Memgraph: MemgraphConfig{
			Neighbors:       5,
			ThemeSimilarity: 0.8,
		},
		Redis: RedisConfig{
			TTLSeconds: 7 * 24 * 3600,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Mode: "development",
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep their default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides selected settings from the environment.
func (c *Config) ApplyEnv() {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingProvider, "LLM_EMBEDDING_PROVIDER")
	setString(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Memgraph.URI, "MEMGRAPH_URI")
	setString(&c.Memgraph.User, "MEMGRAPH_USER")
	setString(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Store.Path, "MOODMAP_STORE")
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			c.Server.Addr = ":" + port
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Pipeline.LookbackDays < 1 {
		return fmt.Errorf("pipeline.lookback_days must be >= 1, got %d", c.Pipeline.LookbackDays)
	}
	if c.Pipeline.TopLabels < 1 {
		return fmt.Errorf("pipeline.top_labels must be >= 1, got %d", c.Pipeline.TopLabels)
	}
	if c.Index.Concurrency < 1 {
		return fmt.Errorf("index.concurrency must be >= 1, got %d", c.Index.Concurrency)
	}
	if c.Mood.ToneScale <= 0 {
		return fmt.Errorf("mood.tone_scale must be > 0, got %v", c.Mood.ToneScale)
	}
	if c.Mood.Weight < 0 || c.Mood.Weight > 1 {
		return fmt.Errorf("mood.weight must be within [0,1], got %v", c.Mood.Weight)
	}
	t := c.Mood.Thresholds
	if !(-1 <= t.VeryNegative && t.VeryNegative <= t.Negative && t.Negative <= t.Neutral && t.Neutral <= t.Positive && t.Positive <= 1) {
		return fmt.Errorf("mood.thresholds must be ordered within [-1,1], got %+v", t)
	}
	if c.Briefing.Analogs < 0 {
		return fmt.Errorf("briefing.analogs must be >= 0, got %d", c.Briefing.Analogs)
	}
	if c.Memgraph.Neighbors < 0 {
		return fmt.Errorf("memgraph.neighbors must be >= 0, got %d", c.Memgraph.Neighbors)
	}
	if c.Memgraph.ThemeSimilarity < 0 || c.Memgraph.ThemeSimilarity > 1 {
		return fmt.Errorf("memgraph.theme_similarity must be within [0,1], got %v", c.Memgraph.ThemeSimilarity)
	}
	if c.Briefing.TopN < 0 {
		return fmt.Errorf("briefing.top_n must be >= 0, got %d", c.Briefing.TopN)
	}
	return nil
}
