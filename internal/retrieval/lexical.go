package retrieval

import (
	"context"

	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/store"
	"github.com/vox-os/vox-memory/internal/textproc"
)

const maxKeywords = 3

// LexicalSource runs keyword searches.
type LexicalSource interface {
	Search(ctx context.Context, p store.SearchParams) ([]model.Memory, error)
}

// LexicalTier matches query keywords against memory text, pinned first then newest.
// A query without usable keywords returns the most recent memories.
type LexicalTier struct {
	source LexicalSource
}

func NewLexicalTier(source LexicalSource) *LexicalTier {
	return &LexicalTier{source: source}
}

func (l *LexicalTier) Name() string { return "lexical" }

func (l *LexicalTier) Search(ctx context.Context, q Query) ([]model.Memory, error) {
	return l.source.Search(ctx, store.SearchParams{
		Scope:    q.scope(),
		Keywords: textproc.Keywords(q.Text, maxKeywords),
		Limit:    q.K,
	})
}
