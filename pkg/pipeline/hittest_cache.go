package pipeline

import (
	"sync"

	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// HitTestCache memoizes hit test paths for the geometry of one frame.
// Entries are keyed by generation and point; Bump advances the
// generation when a frame publishes, discarding everything cached
// against the old geometry.
type HitTestCache struct {
	mu         sync.Mutex
	generation uint64
	entries    map[hitKey][]identity.ID
}

type hitKey struct {
	generation uint64
	x, y       float64
}

// NewHitTestCache creates an empty cache at generation zero.
func NewHitTestCache() *HitTestCache {
	return &HitTestCache{entries: make(map[hitKey][]identity.ID)}
}

// Lookup returns the cached path for position in the current generation.
func (c *HitTestCache) Lookup(position rendering.Offset) ([]identity.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.entries[hitKey{c.generation, position.X, position.Y}]
	return entries, ok
}

// Store caches the path for position. A nil path is stored too, so
// repeated misses on empty space stay cheap.
func (c *HitTestCache) Store(position rendering.Offset, path []identity.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hitKey{c.generation, position.X, position.Y}] = path
}

// Bump invalidates every cached entry by advancing the generation.
func (c *HitTestCache) Bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
}

// Generation returns the current cache generation.
func (c *HitTestCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Len returns the number of cached paths.
func (c *HitTestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
