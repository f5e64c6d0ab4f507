package reader

import (
	"sort"
	"sync"
)

// Bookmarks is the authoritative set of bookmarked article ids. It is safe
// for concurrent use: a user toggle and a completing aggregation cycle may
// touch it at the same time.
type Bookmarks struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewBookmarks creates an empty bookmark set.
func NewBookmarks() *Bookmarks {
	return &Bookmarks{ids: map[string]struct{}{}}
}

// Toggle flips membership of the id and returns the resulting membership.
func (b *Bookmarks) Toggle(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.ids[id]; ok {
		delete(b.ids, id)
		return false
	}

	b.ids[id] = struct{}{}
	return true
}

// Has reports whether the id is bookmarked.
func (b *Bookmarks) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.ids[id]
	return ok
}

// All returns the bookmarked ids in a stable order.
func (b *Bookmarks) All() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]string, 0, len(b.ids))
	for id := range b.ids {
		result = append(result, id)
	}
	sort.Strings(result)

	return result
}
