package state

import "sync"

// Keyed is implemented by every cacheable entity.
type Keyed interface {
	// CacheKey returns the entity's stable identity key within its store.
	CacheKey() string
}

// Repository is a flat, single-level keyed store for one entity kind.
//
// Keys are unique; a known key always resolves to the same entity instance so
// that references held elsewhere observe in-place updates. All writes happen
// on the dispatch thread of control; the lock exists for concurrent reads by
// consumer code.
type Repository[E Keyed] struct {
	mu      sync.RWMutex
	entries map[string]E
	limit   int
	order   []string
}

// NewRepository creates an empty, unbounded repository.
func NewRepository[E Keyed]() *Repository[E] {
	return &Repository[E]{entries: make(map[string]E)}
}

// NewBoundedRepository creates a repository that holds at most limit entries,
// evicting the oldest-inserted entry when full. A non-positive limit means
// unbounded.
func NewBoundedRepository[E Keyed](limit int) *Repository[E] {
	repo := NewRepository[E]()
	repo.limit = limit

	return repo
}

// Get returns the entity stored under key.
func (r *Repository[E]) Get(key string) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, found := r.entries[key]

	return entity, found
}

// Has reports whether key is present.
func (r *Repository[E]) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, found := r.entries[key]

	return found
}

// Put inserts a new entity. Callers merge into existing instances instead of
// re-inserting known keys; Put on a known key keeps the stored instance.
func (r *Repository[E]) Put(entity E) {
	key := entity.CacheKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return
	}
	if r.limit > 0 && len(r.entries) >= r.limit && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.entries, oldest)
	}
	r.entries[key] = entity
	if r.limit > 0 {
		r.order = append(r.order, key)
	}
}

// Delete removes and returns the entity stored under key.
func (r *Repository[E]) Delete(key string) (E, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, found := r.entries[key]
	if found {
		delete(r.entries, key)
		if r.limit > 0 {
			r.order = removeKey(r.order, key)
		}
	}

	return entity, found
}

// Len returns the number of stored entities.
func (r *Repository[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Range calls fn for each stored entity until fn returns false. The
// iteration order is unspecified.
func (r *Repository[E]) Range(fn func(entity E) bool) {
	r.mu.RLock()
	snapshot := make([]E, 0, len(r.entries))
	for _, entity := range r.entries {
		snapshot = append(snapshot, entity)
	}
	r.mu.RUnlock()

	for _, entity := range snapshot {
		if !fn(entity) {
			return
		}
	}
}

// Reset discards every stored entity.
func (r *Repository[E]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]E)
	r.order = nil
}

func removeKey(keys []string, target string) []string {
	filtered := keys[:0]
	for _, key := range keys {
		if key != target {
			filtered = append(filtered, key)
		}
	}

	return filtered
}
