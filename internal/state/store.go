package state

import (
	"sync"
	"time"

	"disgate/pkg/disgate"
)

// Store owns every repository and tiered cache of the engine. It is an
// explicit owned object rather than ambient state so that Reset can restart
// the cache lifecycle exactly once per session establishment.
type Store struct {
	Users         *Repository[*disgate.User]
	Guilds        *Repository[*disgate.Guild]
	Channels      *Repository[*disgate.Channel]
	Messages      *Repository[*disgate.Message]
	Emojis        *Repository[*disgate.Emoji]
	Relationships *Repository[*disgate.Relationship]
	Calls         *Repository[*disgate.Call]

	Members     *TieredCache[*disgate.Member]
	Presences   *TieredCache[*disgate.Presence]
	VoiceStates *TieredCache[*disgate.VoiceState]
	Typing      *TieredCache[*disgate.TypingIndicator]

	selfMu sync.RWMutex
	selfID string
}

// NewStore creates an empty store. messageLimit bounds the message
// repository; a non-positive limit keeps it unbounded.
func NewStore(messageLimit int) *Store {
	return &Store{
		Users:         NewRepository[*disgate.User](),
		Guilds:        NewRepository[*disgate.Guild](),
		Channels:      NewRepository[*disgate.Channel](),
		Messages:      NewBoundedRepository[*disgate.Message](messageLimit),
		Emojis:        NewRepository[*disgate.Emoji](),
		Relationships: NewRepository[*disgate.Relationship](),
		Calls:         NewRepository[*disgate.Call](),
		Members:       NewTieredCache[*disgate.Member](),
		Presences:     NewTieredCache[*disgate.Presence](),
		VoiceStates:   NewTieredCache[*disgate.VoiceState](),
		Typing:        NewTieredCache[*disgate.TypingIndicator](),
	}
}

// Reset discards all cached entities. It runs exactly once per connection
// lifecycle, at session establishment, before the bootstrap snapshot is
// applied. The self identity survives until the next bootstrap overwrites it.
func (s *Store) Reset() {
	s.Users.Reset()
	s.Guilds.Reset()
	s.Channels.Reset()
	s.Messages.Reset()
	s.Emojis.Reset()
	s.Relationships.Reset()
	s.Calls.Reset()
	s.Members.Reset()
	s.Presences.Reset()
	s.VoiceStates.Reset()
	s.Typing.Reset()
}

// SelfID returns the local user's id, empty before the first bootstrap.
func (s *Store) SelfID() string {
	s.selfMu.RLock()
	defer s.selfMu.RUnlock()

	return s.selfID
}

// SetSelfID records the local user's id at session establishment.
func (s *Store) SetSelfID(id string) {
	s.selfMu.Lock()
	s.selfID = id
	s.selfMu.Unlock()
}

// Self returns the local user entity when cached.
func (s *Store) Self() (*disgate.User, bool) {
	id := s.SelfID()
	if id == "" {
		return nil, false
	}

	return s.Users.Get(id)
}

// PruneTyping drops typing indicators older than cutoff. The gateway never
// deletes typing entries, so the owner calls this on a timer.
func (s *Store) PruneTyping(cutoff time.Time) int {
	pruned := 0
	for _, scope := range s.Typing.Scopes() {
		tier, exists := s.Typing.TierIfExists(scope)
		if !exists {
			continue
		}
		var stale []string
		tier.Range(func(indicator *disgate.TypingIndicator) bool {
			if indicator.StartedAt.Before(cutoff) {
				stale = append(stale, indicator.CacheKey())
			}
			return true
		})
		for _, key := range stale {
			if _, removed := tier.Delete(key); removed {
				pruned++
			}
		}
	}

	return pruned
}
