package state

import "sync"

// TieredCache is a two-level keyed store: scope key to an inner repository of
// entities. It backs every scope-partitioned entity kind (roster members,
// presences, voice states, typing indicators).
//
// An outer key always denotes an active or deliberately retained scope;
// deleting an outer key deletes everything nested under it.
type TieredCache[E Keyed] struct {
	mu    sync.RWMutex
	tiers map[string]*Repository[E]
}

// NewTieredCache creates an empty tiered cache.
func NewTieredCache[E Keyed]() *TieredCache[E] {
	return &TieredCache[E]{tiers: make(map[string]*Repository[E])}
}

// Tier returns the inner repository for scope, creating it when absent.
// Insertion paths always vivify the tier first, independent of whether the
// entity itself ends up retained.
func (c *TieredCache[E]) Tier(scope string) *Repository[E] {
	c.mu.Lock()
	defer c.mu.Unlock()

	tier, exists := c.tiers[scope]
	if !exists {
		tier = NewRepository[E]()
		c.tiers[scope] = tier
	}

	return tier
}

// TierIfExists returns the inner repository for scope without vivifying it.
func (c *TieredCache[E]) TierIfExists(scope string) (*Repository[E], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tier, exists := c.tiers[scope]

	return tier, exists
}

// Get returns the entity stored under (scope, key).
func (c *TieredCache[E]) Get(scope, key string) (E, bool) {
	tier, exists := c.TierIfExists(scope)
	if !exists {
		var zero E
		return zero, false
	}

	return tier.Get(key)
}

// Delete removes and returns the entity stored under (scope, key). Scope-less
// lookups are misses, never errors.
func (c *TieredCache[E]) Delete(scope, key string) (E, bool) {
	tier, exists := c.TierIfExists(scope)
	if !exists {
		var zero E
		return zero, false
	}

	return tier.Delete(key)
}

// DeleteTier removes a scope and everything nested under it, returning the
// removed repository for cascade inspection.
func (c *TieredCache[E]) DeleteTier(scope string) (*Repository[E], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tier, exists := c.tiers[scope]
	if exists {
		delete(c.tiers, scope)
	}

	return tier, exists
}

// HasTier reports whether scope has an active tier.
func (c *TieredCache[E]) HasTier(scope string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.tiers[scope]

	return exists
}

// Scopes returns a snapshot of active outer keys.
func (c *TieredCache[E]) Scopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	scopes := make([]string, 0, len(c.tiers))
	for scope := range c.tiers {
		scopes = append(scopes, scope)
	}

	return scopes
}

// Len returns the total entity count across all tiers.
func (c *TieredCache[E]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, tier := range c.tiers {
		total += tier.Len()
	}

	return total
}

// Reset discards every tier.
func (c *TieredCache[E]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tiers = make(map[string]*Repository[E])
}
