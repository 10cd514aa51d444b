// Package config loads vox-memory settings from defaults, an optional YAML file, and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath     string           `yaml:"db_path"`
	LLM        LLMConfig        `yaml:"llm"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Memory     MemoryConfig     `yaml:"memory"`
	History    HistoryConfig    `yaml:"history"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ClassifierConfig selects the cheaper model used for classification and summaries.
// An empty model reuses the completion model.
type ClassifierConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "ollama" | "openai" | "hash" | "" (disabled)
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Dims              int     `yaml:"dims"`
	CacheSize         int64   `yaml:"cache_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type MemoryConfig struct {
	SummaryThreshold  int    `yaml:"summary_threshold"`
	RetrievalK        int    `yaml:"retrieval_k"`
	CoreLimit         int    `yaml:"core_limit"`
	IncludeGlobal     bool   `yaml:"include_global"`
	AllowGlobal       bool   `yaml:"allow_global"`
	AutoCapture       bool   `yaml:"auto_capture"`
	ContextCharBudget int    `yaml:"context_char_budget"`
	BackfillSchedule  string `yaml:"backfill_schedule"`
}

type HistoryConfig struct {
	MaxTurns int           `yaml:"max_turns"`
	IdleTTL  time.Duration `yaml:"idle_ttl"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath: filepath.Join(home, ".vox-memory", "vox.db"),
		LLM: LLMConfig{
			Provider:  "claude",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
			Burst:     1,
		},
		Classifier: ClassifierConfig{
			MaxTokens: 200,
		},
		Embedding: EmbeddingConfig{
			CacheSize: 1000,
		},
		Memory: MemoryConfig{
			SummaryThreshold:  300,
			RetrievalK:        5,
			CoreLimit:         20,
			IncludeGlobal:     true,
			AllowGlobal:       true,
			AutoCapture:       true,
			ContextCharBudget: 4000,
			BackfillSchedule:  "@every 10m",
		},
		History: HistoryConfig{
			MaxTurns: 10,
			IdleTTL:  24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty; $VOX_CONFIG is used then.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VOX_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DBPath, "VOX_DB")
	setString(&cfg.LLM.Provider, "VOX_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "VOX_LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "VOX_LLM_BASE_URL")
	setString(&cfg.Classifier.Model, "VOX_CLASSIFIER_MODEL")
	setString(&cfg.Embedding.Provider, "VOX_EMBED_PROVIDER")
	setString(&cfg.Embedding.Model, "VOX_EMBED_MODEL")
	setString(&cfg.Embedding.BaseURL, "VOX_EMBED_URL")
	setString(&cfg.Metrics.Addr, "VOX_METRICS_ADDR")

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == "ollama" {
		cfg.Embedding.BaseURL = os.Getenv("OLLAMA_HOST")
	}

	if v := os.Getenv("VOX_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOX_MAX_TURNS must be an integer, got %q", v)
		}
		cfg.History.MaxTurns = n
	}
	if os.Getenv("VOX_DEBUG") == "true" {
		cfg.Log.Level = "debug"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var knownLLMProviders = map[string]bool{
	"claude": true,
	"openai": true,
	"ollama": true,
}

var knownEmbedProviders = map[string]bool{
	"":       true,
	"ollama": true,
	"openai": true,
	"hash":   true,
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if !knownLLMProviders[c.LLM.Provider] {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if !knownEmbedProviders[c.Embedding.Provider] {
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.History.MaxTurns <= 0 {
		return fmt.Errorf("history.max_turns must be positive, got %d", c.History.MaxTurns)
	}
	if c.Memory.RetrievalK <= 0 {
		return fmt.Errorf("memory.retrieval_k must be positive, got %d", c.Memory.RetrievalK)
	}
	if c.Memory.SummaryThreshold <= 0 {
		return fmt.Errorf("memory.summary_threshold must be positive, got %d", c.Memory.SummaryThreshold)
	}
	if c.Memory.CoreLimit <= 0 {
		return fmt.Errorf("memory.core_limit must be positive, got %d", c.Memory.CoreLimit)
	}
	if c.Memory.ContextCharBudget <= 0 {
		return fmt.Errorf("memory.context_char_budget must be positive, got %d", c.Memory.ContextCharBudget)
	}
	return nil
}
