// Package history keeps each owner's rolling short-term conversation in memory.
package history

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vox-os/vox-memory/internal/model"
)

// DefaultMaxTurns is the number of user/assistant exchanges kept per owner.
const DefaultMaxTurns = 10

// Cache holds at most 2*maxTurns entries per owner, evicting the oldest first.
// Owners idle longer than the TTL are dropped. Process-local only.
type Cache struct {
	mu       sync.Mutex
	items    *cache.Cache
	maxTurns int
}

// New creates a cache. idleTTL <= 0 keeps entries until cleared.
func New(maxTurns int, idleTTL time.Duration) *Cache {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	ttl, cleanup := idleTTL, idleTTL*2
	if idleTTL <= 0 {
		ttl, cleanup = cache.NoExpiration, 0
	}
	return &Cache{
		items:    cache.New(ttl, cleanup),
		maxTurns: maxTurns,
	}
}

// Limit is the maximum number of entries kept per owner.
func (c *Cache) Limit() int { return 2 * c.maxTurns }

func (c *Cache) load(owner string) []model.Entry {
	if v, ok := c.items.Get(owner); ok {
		if entries, ok := v.([]model.Entry); ok {
			return entries
		}
	}
	return nil
}

func (c *Cache) store(owner string, entries []model.Entry) {
	c.items.Set(owner, entries, cache.DefaultExpiration)
}

// Push appends one entry, evicting from the front past the limit.
func (c *Cache) Push(owner string, role model.Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.load(owner), model.Entry{Role: role, Content: content})
	if over := len(entries) - c.Limit(); over > 0 {
		entries = append([]model.Entry(nil), entries[over:]...)
	}
	c.store(owner, entries)
}

// Get returns a copy of the owner's history, oldest first.
func (c *Cache) Get(owner string) []model.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Entry(nil), c.load(owner)...)
}

func (c *Cache) Len(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.load(owner))
}

func (c *Cache) Clear(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(owner)
}

// Reseed replaces the owner's history with the user and assistant entries
// of the given list, keeping only the most recent Limit of them.
func (c *Cache) Reseed(owner string, entries []model.Entry) {
	var kept []model.Entry
	for _, e := range entries {
		if e.Role.Conversational() {
			kept = append(kept, e)
		}
	}
	if over := len(kept) - c.Limit(); over > 0 {
		kept = kept[over:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(kept) == 0 {
		c.items.Delete(owner)
		return
	}
	c.store(owner, kept)
}
