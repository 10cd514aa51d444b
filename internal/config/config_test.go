package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOX_CONFIG", "")
	t.Setenv("VOX_DB", "")
	t.Setenv("VOX_LLM_PROVIDER", "")
	t.Setenv("VOX_EMBED_PROVIDER", "")
	t.Setenv("VOX_MAX_TURNS", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.History.MaxTurns != 10 {
		t.Errorf("expected max turns 10, got %d", cfg.History.MaxTurns)
	}
	if cfg.Memory.SummaryThreshold != 300 {
		t.Errorf("expected summary threshold 300, got %d", cfg.Memory.SummaryThreshold)
	}
	if cfg.Memory.RetrievalK != 5 {
		t.Errorf("expected k 5, got %d", cfg.Memory.RetrievalK)
	}
	if !cfg.Memory.IncludeGlobal {
		t.Error("expected global memories visible by default")
	}
	if cfg.Embedding.Provider != "" {
		t.Errorf("expected embeddings disabled by default, got %q", cfg.Embedding.Provider)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vox.yaml")
	yml := `
db_path: /tmp/from-file.db
llm:
  provider: openai
  model: gpt-4.1-mini
  timeout: 30s
memory:
  retrieval_k: 7
  include_global: false
history:
  max_turns: 4
  idle_ttl: 1h
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VOX_DB", "/tmp/from-env.db")
	t.Setenv("VOX_LLM_PROVIDER", "")
	t.Setenv("VOX_EMBED_PROVIDER", "")
	t.Setenv("VOX_MAX_TURNS", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/from-env.db" {
		t.Errorf("env should override file, got %q", cfg.DBPath)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Memory.RetrievalK != 7 || cfg.Memory.IncludeGlobal {
		t.Errorf("unexpected memory config: %+v", cfg.Memory)
	}
	if cfg.Memory.SummaryThreshold != 300 {
		t.Errorf("unset keys should keep defaults, got %d", cfg.Memory.SummaryThreshold)
	}
	if cfg.History.MaxTurns != 4 || cfg.History.IdleTTL != time.Hour {
		t.Errorf("unexpected history config: %+v", cfg.History)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown llm", func(c *Config) { c.LLM.Provider = "palm" }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"zero turns", func(c *Config) { c.History.MaxTurns = 0 }},
		{"zero k", func(c *Config) { c.Memory.RetrievalK = 0 }},
		{"empty db", func(c *Config) { c.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadBadMaxTurnsEnv(t *testing.T) {
	t.Setenv("VOX_CONFIG", "")
	t.Setenv("VOX_MAX_TURNS", "ten")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric VOX_MAX_TURNS")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
