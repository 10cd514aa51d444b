// Package retrieval finds the long-term memories most relevant to a query.
//
// An Engine tries its strategies in order and returns the first that
// succeeds: semantic vector ranking when embeddings are available, then a
// keyword match against memory text.
package retrieval

import (
	"context"
	"errors"

	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/store"
)

// DefaultK is the result bound used when a query does not set one.
const DefaultK = 5

// TierNone is reported when every strategy failed.
const TierNone = "none"

// ErrTierUnavailable means a strategy cannot serve the query and the next one should try.
var ErrTierUnavailable = errors.New("retrieval tier unavailable")

type Query struct {
	Owner string
	Text  string
	K     int
	// IncludeGlobal also considers ownerless memories.
	IncludeGlobal bool
}

func (q Query) scope() store.Scope {
	return store.Scope{Owner: q.Owner, IncludeGlobal: q.IncludeGlobal}
}

type Result struct {
	Memories []model.Memory `json:"memories"`
	Tier     string         `json:"tier"`
}

// Strategy is one retrieval tier.
type Strategy interface {
	Name() string
	Search(ctx context.Context, q Query) ([]model.Memory, error)
}

type Engine struct {
	tiers         []Strategy
	includeGlobal bool
}

// NewEngine builds an engine over tiers, tried in the given order.
func NewEngine(includeGlobal bool, tiers ...Strategy) *Engine {
	return &Engine{tiers: tiers, includeGlobal: includeGlobal}
}

// Retrieve never fails; when every tier errors it returns an empty result with tier "none".
func (e *Engine) Retrieve(ctx context.Context, q Query) Result {
	if q.K <= 0 {
		q.K = DefaultK
	}
	q.IncludeGlobal = e.includeGlobal

	for _, tier := range e.tiers {
		mems, err := tier.Search(ctx, q)
		if err != nil {
			if errors.Is(err, ErrTierUnavailable) {
				logger.Debug("retrieval tier skipped", "tier", tier.Name(), "reason", err)
			} else {
				logger.Warn("retrieval tier failed", "tier", tier.Name(), "error", err)
			}
			continue
		}
		if len(mems) > q.K {
			mems = mems[:q.K]
		}
		metrics.RecordRetrievalTier(tier.Name())
		return Result{Memories: mems, Tier: tier.Name()}
	}

	metrics.RecordRetrievalTier(TierNone)
	return Result{Tier: TierNone}
}
