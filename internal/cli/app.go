package cli

import (
	"fmt"

	"github.com/vox-os/vox-memory/internal/chat"
	"github.com/vox-os/vox-memory/internal/config"
	"github.com/vox-os/vox-memory/internal/embedding"
	"github.com/vox-os/vox-memory/internal/enrich"
	"github.com/vox-os/vox-memory/internal/history"
	"github.com/vox-os/vox-memory/internal/llm"
	"github.com/vox-os/vox-memory/internal/memory"
	"github.com/vox-os/vox-memory/internal/retrieval"
	"github.com/vox-os/vox-memory/internal/store"
)

// app is the wired service graph behind every command.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	embedder embedding.Embedder
	memory   *memory.Service
	chat     *chat.Service
}

// openApp opens the store and builds the services. Commands that never call
// a model pass withLLM=false and can run without provider credentials.
func openApp(withLLM bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var completion, classifier llm.LLM
	if withLLM {
		completion, classifier, err = buildLLMs(cfg)
		if err != nil {
			return nil, err
		}
	}

	emb, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := retrieval.NewEngine(cfg.Memory.IncludeGlobal,
		retrieval.NewVectorTier(s, emb),
		retrieval.NewLexicalTier(s),
	)
	mem := memory.NewService(memory.Deps{
		Store:      s,
		Classifier: enrich.NewClassifier(classifier),
		Summarizer: enrich.NewSummarizer(classifier, cfg.Memory.SummaryThreshold),
		Embedder:   emb,
		Retriever:  engine,
	}, memory.Options{
		IncludeGlobal: cfg.Memory.IncludeGlobal,
		AllowGlobal:   cfg.Memory.AllowGlobal,
		CoreLimit:     cfg.Memory.CoreLimit,
		RetrievalK:    cfg.Memory.RetrievalK,
	})
	chatSvc := chat.NewService(chat.Deps{
		Sessions: s,
		Memory:   mem,
		History:  history.New(cfg.History.MaxTurns, cfg.History.IdleTTL),
		LLM:      completion,
	}, chat.Options{
		AutoCapture: cfg.Memory.AutoCapture,
		CharBudget:  cfg.Memory.ContextCharBudget,
		RetrievalK:  cfg.Memory.RetrievalK,
	})

	return &app{cfg: cfg, store: s, embedder: emb, memory: mem, chat: chatSvc}, nil
}

// buildLLMs returns the completion model and the cheaper model used for
// classification and summaries. They share a client unless classifier.model is set.
func buildLLMs(cfg *config.Config) (completion, classifier llm.LLM, err error) {
	base := llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	}
	completion, err = llm.New(base)
	if err != nil {
		return nil, nil, fmt.Errorf("llm: %w", err)
	}
	completion = llm.RateLimited(completion, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)

	if cfg.Classifier.Model == "" {
		return completion, completion, nil
	}
	cc := base
	cc.Model = cfg.Classifier.Model
	if cfg.Classifier.MaxTokens > 0 {
		cc.MaxTokens = cfg.Classifier.MaxTokens
	}
	classifier, err = llm.New(cc)
	if err != nil {
		return nil, nil, fmt.Errorf("classifier llm: %w", err)
	}
	return completion, llm.RateLimited(classifier, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst), nil
}

func (a *app) Close() {
	if c, ok := a.embedder.(interface{ Close() }); ok {
		c.Close()
	}
	a.store.Close()
}

func mustOpenApp(withLLM bool) *app {
	a, err := openApp(withLLM)
	if err != nil {
		exitErr("open", err)
	}
	return a
}
