// Package store provides the memory and chat-session storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/vox-os/vox-memory/internal/model"
)

// ErrNotFound is returned when a record does not exist or is outside the caller's scope.
var ErrNotFound = errors.New("not found")

// Scope limits which memories a query can see.
type Scope struct {
	Owner string
	// IncludeGlobal also matches ownerless memories.
	IncludeGlobal bool
	// AllOwners ignores Owner entirely (privileged listing).
	AllOwners bool
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	Scope
	ActiveOnly bool
	Limit      int // 0 means no limit
}

// SearchParams holds parameters for a lexical memory search.
type SearchParams struct {
	Scope
	Keywords []string
	Limit    int
}

// MemoryStore persists long-term memories.
type MemoryStore interface {
	InsertMemory(ctx context.Context, m *model.Memory) error
	GetMemory(ctx context.Context, sc Scope, id string) (*model.Memory, error)
	UpdateMemory(ctx context.Context, m *model.Memory) error
	DeleteMemory(ctx context.Context, sc Scope, id string) error
	ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error)

	// Core returns active memories that are pinned or in a salient category.
	// Every pinned memory is returned; limit bounds only the unpinned rest.
	Core(ctx context.Context, sc Scope, limit int) ([]model.Memory, error)
	// Search matches any keyword against memory text; no keywords lists the most recent.
	Search(ctx context.Context, p SearchParams) ([]model.Memory, error)
	// Embedded returns active memories in scope that carry an embedding.
	Embedded(ctx context.Context, sc Scope) ([]model.Memory, error)
	// Unembedded returns active memories of any owner without an embedding, oldest first.
	Unembedded(ctx context.Context, limit int) ([]model.Memory, error)
	SetEmbedding(ctx context.Context, id string, vec []float32) error
}

// SessionStore persists chat sessions and their append-only message log.
type SessionStore interface {
	CreateSession(ctx context.Context, owner, title string) (*model.Session, error)
	GetSession(ctx context.Context, owner, id string) (*model.Session, error)
	// LatestSessionByTitle returns the most recently updated session with the title.
	LatestSessionByTitle(ctx context.Context, owner, title string) (*model.Session, error)
	ListSessions(ctx context.Context, owner string) ([]model.Session, error)
	DeleteSession(ctx context.Context, owner, id string) error

	AppendMessage(ctx context.Context, sessionID string, role model.Role, content string) (*model.Message, error)
	AppendMessages(ctx context.Context, sessionID string, entries ...model.Entry) ([]model.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	// RecentMessages returns the last n messages in chronological order.
	RecentMessages(ctx context.Context, sessionID string, n int) ([]model.Message, error)
	ClearMessages(ctx context.Context, sessionID string) error
}

// Store defines the full storage interface.
type Store interface {
	MemoryStore
	SessionStore

	// Close closes the store.
	Close() error
}
