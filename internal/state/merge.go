package state

// Patchable ties an entity to its partial-update payload type.
type Patchable[P any] interface {
	Keyed
	// ApplyPatch merges the partial payload in place, leaving absent fields
	// untouched.
	ApplyPatch(patch P)
}

// Resolve is the lookup-or-create-and-merge primitive applied uniformly by
// every dispatch handler: a known key mutates the existing instance and
// preserves its identity; an unknown key constructs and inserts a new one.
func Resolve[E Patchable[P], P any](
	repo *Repository[E],
	key string,
	patch P,
	construct func(P) E,
) (entity E, created bool) {
	if existing, found := repo.Get(key); found {
		existing.ApplyPatch(patch)
		return existing, false
	}

	entity = construct(patch)
	repo.Put(entity)

	return entity, true
}

// ResolveTier applies Resolve inside a tiered cache, vivifying the outer
// scope tier first.
func ResolveTier[E Patchable[P], P any](
	cache *TieredCache[E],
	scope string,
	key string,
	patch P,
	construct func(P) E,
) (entity E, created bool) {
	return Resolve(cache.Tier(scope), key, patch, construct)
}
