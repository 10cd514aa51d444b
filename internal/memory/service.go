// Package memory implements the long-term memory pipeline: classify,
// summarize and embed candidate text, then persist it under an owner.
package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/vox-os/vox-memory/internal/apperr"
	"github.com/vox-os/vox-memory/internal/embedding"
	"github.com/vox-os/vox-memory/internal/enrich"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/retrieval"
	"github.com/vox-os/vox-memory/internal/store"
	"github.com/vox-os/vox-memory/internal/textproc"
)

// ErrNotMemorable is returned when the classifier rejects text for long-term storage.
var ErrNotMemorable = apperr.InvalidInput("memory.create", "Text is not suitable for long-term memory.")

// DefaultCoreLimit bounds the unpinned part of the core set when Options
// leaves it unset. Pinned memories are never cut.
const DefaultCoreLimit = 20

// Deps are the collaborators a Service runs against. Embedder may be nil.
type Deps struct {
	Store      store.MemoryStore
	Classifier *enrich.Classifier
	Summarizer *enrich.Summarizer
	Embedder   embedding.Embedder
	Retriever  *retrieval.Engine
}

type Options struct {
	// IncludeGlobal makes ownerless memories visible to every owner.
	IncludeGlobal bool
	// AllowGlobal lets privileged callers create ownerless memories.
	AllowGlobal bool
	CoreLimit   int
	RetrievalK  int
}

type Service struct {
	store      store.MemoryStore
	classifier *enrich.Classifier
	summarizer *enrich.Summarizer
	embedder   embedding.Embedder
	retriever  *retrieval.Engine
	opts       Options
}

func NewService(d Deps, opts Options) *Service {
	if opts.CoreLimit <= 0 {
		opts.CoreLimit = DefaultCoreLimit
	}
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = retrieval.DefaultK
	}
	return &Service{
		store:      d.Store,
		classifier: d.Classifier,
		summarizer: d.Summarizer,
		embedder:   d.Embedder,
		retriever:  d.Retriever,
		opts:       opts,
	}
}

// CreateParams describes a new memory. An explicit Category skips classification.
type CreateParams struct {
	Text     string
	Category string
	Pinned   bool
	Global   bool
}

// UpdateParams holds the fields to change; nil fields are left as they are.
// A non-nil empty Category clears the category.
type UpdateParams struct {
	Text     *string
	Category *string
	Pinned   *bool
	Active   *bool
}

type ListParams struct {
	// AllOwners lists every owner's memories; privileged callers only.
	AllOwners  bool
	ActiveOnly bool
	Limit      int
}

func (s *Service) readScope(owner string) store.Scope {
	return store.Scope{Owner: owner, IncludeGlobal: s.opts.IncludeGlobal}
}

// writeScope lets privileged callers modify ownerless memories as well as their own.
func (s *Service) writeScope(caller model.Caller) store.Scope {
	return store.Scope{Owner: caller.UserID, IncludeGlobal: caller.Privileged}
}

func parseCategory(op, s string) (*model.Category, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := model.ParseCategory(s)
	if err != nil {
		return nil, apperr.InvalidInputErr(op, err)
	}
	return &c, nil
}

// Create runs the full pipeline and stores the memory. Text the classifier
// rejects is not stored and ErrNotMemorable is returned.
func (s *Service) Create(ctx context.Context, caller model.Caller, p CreateParams) (*model.Memory, error) {
	const op = "memory.create"

	text := textproc.Normalize(p.Text)
	if text == "" {
		return nil, apperr.InvalidInput(op, "text is required")
	}
	cat, err := parseCategory(op, p.Category)
	if err != nil {
		return nil, err
	}
	owner := caller.UserID
	if p.Global {
		if !caller.Privileged || !s.opts.AllowGlobal {
			return nil, apperr.InvalidInput(op, "global memories are not allowed for this caller")
		}
		owner = ""
	} else if owner == "" {
		return nil, apperr.InvalidInput(op, "owner is required")
	}

	if cat == nil {
		cat = s.classifier.Classify(ctx, text)
		if cat == nil {
			metrics.RecordPipeline(metrics.OutcomeRejected)
			return nil, ErrNotMemorable
		}
	}

	m := s.build(ctx, owner, text, cat)
	m.Pinned = p.Pinned
	if err := s.insert(ctx, op, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Capture is the conversational path. A rejected message is skipped with
// (nil, nil) unless explicit is set, in which case it is kept uncategorized.
func (s *Service) Capture(ctx context.Context, caller model.Caller, text string, explicit bool) (*model.Memory, error) {
	const op = "memory.capture"

	text = textproc.Normalize(text)
	if text == "" || caller.UserID == "" {
		return nil, nil
	}

	cat := s.classifier.Classify(ctx, text)
	if cat == nil && !explicit {
		metrics.RecordPipeline(metrics.OutcomeRejected)
		logger.Debug("message not memorable", "owner", caller.UserID)
		return nil, nil
	}

	m := s.build(ctx, caller.UserID, text, cat)
	if err := s.insert(ctx, op, m); err != nil {
		return nil, err
	}
	logger.Info("memory captured", "owner", caller.UserID, "id", m.ID, "category", m.CategoryName(), "explicit", explicit)
	return m, nil
}

// build summarizes and embeds text. Both steps fall back instead of failing.
func (s *Service) build(ctx context.Context, owner, text string, cat *model.Category) *model.Memory {
	return &model.Memory{
		Owner:     owner,
		Text:      text,
		Summary:   s.summarizer.Summarize(ctx, text),
		Category:  cat,
		Embedding: s.embed(ctx, text),
		Active:    true,
	}
}

func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec := embedding.Generate(ctx, s.embedder, text)
	if vec == nil {
		metrics.RecordDependencyFailure(metrics.DepEmbedding)
	}
	return vec
}

func (s *Service) insert(ctx context.Context, op string, m *model.Memory) error {
	if err := s.store.InsertMemory(ctx, m); err != nil {
		metrics.RecordPipeline(metrics.OutcomeFailed)
		metrics.RecordDependencyFailure(metrics.DepStore)
		return apperr.Store(op, err)
	}
	metrics.RecordPipeline(metrics.OutcomeStored)
	return nil
}

// Update applies p to an owned memory. Changing the text re-runs the pipeline;
// a classifier rejection keeps the previous category.
func (s *Service) Update(ctx context.Context, caller model.Caller, id string, p UpdateParams) (*model.Memory, error) {
	const op = "memory.update"

	m, err := s.store.GetMemory(ctx, s.writeScope(caller), id)
	if err != nil {
		return nil, mapStoreErr(op, id, err)
	}

	var explicitCat *model.Category
	if p.Category != nil {
		explicitCat, err = parseCategory(op, *p.Category)
		if err != nil {
			return nil, err
		}
		m.Category = explicitCat
	}

	if p.Text != nil {
		text := textproc.Normalize(*p.Text)
		if text == "" {
			return nil, apperr.InvalidInput(op, "text is required")
		}
		if text != m.Text {
			m.Text = text
			if p.Category == nil {
				if cat := s.classifier.Classify(ctx, text); cat != nil {
					m.Category = cat
				}
			}
			m.Summary = s.summarizer.Summarize(ctx, text)
			m.Embedding = s.embed(ctx, text)
		}
	}
	if p.Pinned != nil {
		m.Pinned = *p.Pinned
	}
	if p.Active != nil {
		m.Active = *p.Active
	}

	if err := s.store.UpdateMemory(ctx, m); err != nil {
		return nil, mapStoreErr(op, id, err)
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, caller model.Caller, id string) error {
	if err := s.store.DeleteMemory(ctx, s.writeScope(caller), id); err != nil {
		return mapStoreErr("memory.delete", id, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, caller model.Caller, id string) (*model.Memory, error) {
	sc := s.readScope(caller.UserID)
	if caller.Privileged {
		sc.IncludeGlobal = true
	}
	m, err := s.store.GetMemory(ctx, sc, id)
	if err != nil {
		return nil, mapStoreErr("memory.get", id, err)
	}
	return m, nil
}

// List returns active and inactive memories, newest first.
func (s *Service) List(ctx context.Context, caller model.Caller, p ListParams) ([]model.Memory, error) {
	if p.AllOwners && !caller.Privileged {
		return nil, apperr.InvalidInput("memory.list", "listing all owners requires a privileged caller")
	}
	sc := s.readScope(caller.UserID)
	sc.AllOwners = p.AllOwners
	mems, err := s.store.ListMemories(ctx, store.ListParams{Scope: sc, ActiveOnly: p.ActiveOnly, Limit: p.Limit})
	if err != nil {
		return nil, apperr.Store("memory.list", err)
	}
	return mems, nil
}

// Core returns the memories always injected into context for owner.
func (s *Service) Core(ctx context.Context, owner string) ([]model.Memory, error) {
	mems, err := s.store.Core(ctx, s.readScope(owner), s.opts.CoreLimit)
	if err != nil {
		return nil, apperr.Store("memory.core", err)
	}
	return mems, nil
}

// Retrieve returns up to k memories relevant to query. k <= 0 uses the configured default.
func (s *Service) Retrieve(ctx context.Context, caller model.Caller, query string, k int) retrieval.Result {
	if k <= 0 {
		k = s.opts.RetrievalK
	}
	return s.retriever.Retrieve(ctx, retrieval.Query{Owner: caller.UserID, Text: query, K: k})
}

// BackfillEmbeddings embeds up to limit active memories stored without a vector.
// It stops at the first embedder failure and reports how many were filled.
func (s *Service) BackfillEmbeddings(ctx context.Context, limit int) (int, error) {
	const op = "memory.backfill"
	if s.embedder == nil {
		return 0, nil
	}

	pending, err := s.store.Unembedded(ctx, limit)
	if err != nil {
		return 0, apperr.Store(op, err)
	}

	filled := 0
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return filled, err
		}
		vec, err := s.embedder.Embed(ctx, m.Text)
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		if err != nil {
			metrics.RecordDependencyFailure(metrics.DepEmbedding)
			return filled, apperr.Unavailable(op, err)
		}
		if err := s.store.SetEmbedding(ctx, m.ID, vec); err != nil {
			return filled, apperr.Store(op, err)
		}
		filled++
	}
	if filled > 0 {
		logger.Info("embeddings backfilled", "count", filled)
	}
	return filled, nil
}

func mapStoreErr(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "memory "+id+" not found")
	}
	return apperr.Store(op, err)
}
