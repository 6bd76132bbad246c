// Package cache holds the per-replica (L1) mirror of loaded lists.
//
// Entries are advisory: Redis (L2) is authoritative, and drift self-heals
// because every mutation flows back through Pub/Sub. The cache is touched by
// request handlers and the Pub/Sub listener concurrently, so all access goes
// through one RWMutex.
package cache

import (
	"sync"

	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// Cache is the L1 state cache. Entries are created on demand and never
// evicted; FlushAll clears everything.
type Cache struct {
	log *zap.Logger

	mu    sync.RWMutex
	lists map[string]*todo.ListState
}

func New(log *zap.Logger) *Cache {
	return &Cache{
		log:   log.Named("l1cache"),
		lists: make(map[string]*todo.ListState),
	}
}

// Has reports whether the list is loaded on this replica.
func (c *Cache) Has(listID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lists[listID]
	return ok
}

// Get returns a deep copy of the cached state and whether it was present.
func (c *Cache) Get(listID string) (todo.ListState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.lists[listID]
	if !ok {
		return todo.ListState{}, false
	}
	out := st.Clone()
	out.ListID = listID
	return out, true
}

// Rev returns the cached revision, or 0 if the list is not loaded.
func (c *Cache) Rev(listID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if st, ok := c.lists[listID]; ok {
		return st.Rev
	}
	return 0
}

// Set replaces the whole cached state for a list.
func (c *Cache) Set(listID string, state todo.ListState) {
	st := state.Clone()
	st.ListID = listID
	if st.Items == nil {
		st.Items = make(map[string]todo.Item)
	}
	c.mu.Lock()
	c.lists[listID] = &st
	c.mu.Unlock()
}

// SetRev overwrites the revision stamp of a loaded list. No-op when the list
// is not cached.
func (c *Cache) SetRev(listID string, rev float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.lists[listID]; ok {
		st.Rev = rev
	}
}

// AddItem inserts (or replaces) an item in a loaded list.
func (c *Cache) AddItem(listID, itemID string, item todo.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.lists[listID]; ok {
		st.Items[itemID] = item
	}
}

// UpdateItem merge-replaces an existing item. Unknown lists or items are
// ignored; the next full load reconciles.
func (c *Cache) UpdateItem(listID, itemID string, item todo.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.lists[listID]
	if !ok {
		return
	}
	if _, ok := st.Items[itemID]; !ok {
		return
	}
	st.Items[itemID] = item
}

// DeleteItem removes an item from a loaded list.
func (c *Cache) DeleteItem(listID, itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.lists[listID]; ok {
		delete(st.Items, itemID)
	}
}

// Len returns the number of cached lists.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists)
}

// Dump returns a deep copy of every cached list, keyed by list ID. Admin use.
func (c *Cache) Dump() map[string]todo.ListState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]todo.ListState, len(c.lists))
	for id, st := range c.lists {
		cp := st.Clone()
		cp.ListID = id
		out[id] = cp
	}
	return out
}

// FlushAll drops every cached list.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	n := len(c.lists)
	c.lists = make(map[string]*todo.ListState)
	c.mu.Unlock()
	c.log.Info("flushed all cached states", zap.Int("lists", n))
}
