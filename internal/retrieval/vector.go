package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/vox-os/vox-memory/internal/embedding"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/store"
)

// VectorSource lists embedded candidates.
type VectorSource interface {
	Embedded(ctx context.Context, sc store.Scope) ([]model.Memory, error)
}

// VectorTier ranks embedded memories by cosine distance to the query.
type VectorTier struct {
	source   VectorSource
	embedder embedding.Embedder
}

func NewVectorTier(source VectorSource, embedder embedding.Embedder) *VectorTier {
	return &VectorTier{source: source, embedder: embedder}
}

func (v *VectorTier) Name() string { return "vector" }

func (v *VectorTier) Search(ctx context.Context, q Query) ([]model.Memory, error) {
	if v.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrTierUnavailable)
	}

	qvec, err := v.embedder.Embed(ctx, q.Text)
	if err != nil {
		metrics.RecordDependencyFailure(metrics.DepEmbedding)
		return nil, fmt.Errorf("%w: embed query: %v", ErrTierUnavailable, err)
	}
	if len(qvec) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrTierUnavailable)
	}

	candidates, err := v.source.Embedded(ctx, q.scope())
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	type scored struct {
		mem  model.Memory
		dist float64
	}
	var ranked []scored
	for _, m := range candidates {
		if len(m.Embedding) != len(qvec) {
			continue
		}
		ranked = append(ranked, scored{mem: m, dist: embedding.CosineDistance(qvec, m.Embedding)})
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: no embedded candidates", ErrTierUnavailable)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.mem.Pinned != b.mem.Pinned {
			return a.mem.Pinned
		}
		return a.mem.CreatedAt.After(b.mem.CreatedAt)
	})

	k := q.K
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]model.Memory, k)
	for i := range out {
		out[i] = ranked[i].mem
	}
	return out, nil
}
