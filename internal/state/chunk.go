package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"disgate/pkg/disgate"
)

// MemberChunkCoordinator tracks which guilds still owe a full snapshot and
// which have a roster fetch in flight, so that at most one bulk fetch is
// outstanding per guild.
//
// There is no timeout or retry for a fetch that never resolves; that is the
// request layer's concern.
type MemberChunkCoordinator struct {
	mu          sync.Mutex
	pending     map[string]struct{}
	outstanding map[string]struct{}

	requester    disgate.Requester
	enabled      bool
	threshold    int
	onAsyncError func(ctx context.Context, scope string, err error)
	onWarning    func(ctx context.Context, err error)
	newNonce     func() string
}

// NewMemberChunkCoordinator creates a coordinator. Fetching is active only
// when enabled and a requester is present; threshold is the roster size above
// which a guild is considered large. Fetch failures go to both sinks when
// set: onAsyncError for operators, onWarning for subscribers.
func NewMemberChunkCoordinator(
	requester disgate.Requester,
	enabled bool,
	threshold int,
	onAsyncError func(ctx context.Context, scope string, err error),
	onWarning func(ctx context.Context, err error),
) *MemberChunkCoordinator {
	return &MemberChunkCoordinator{
		pending:      make(map[string]struct{}),
		outstanding:  make(map[string]struct{}),
		requester:    requester,
		enabled:      enabled && requester != nil,
		threshold:    threshold,
		onAsyncError: onAsyncError,
		onWarning:    onWarning,
		newNonce:     uuid.NewString,
	}
}

// Reset clears all tracking at session establishment. Requests already in
// flight are left to resolve or fail on their own; their chunks land in the
// fresh caches, which is an accepted race.
func (c *MemberChunkCoordinator) Reset() {
	c.mu.Lock()
	c.pending = make(map[string]struct{})
	c.outstanding = make(map[string]struct{})
	c.mu.Unlock()
}

// Bootstrap ingests one guild from the session snapshot: unavailable guilds
// are marked pending until their full snapshot arrives, and large guilds get
// a roster fetch issued immediately.
func (c *MemberChunkCoordinator) Bootstrap(ctx context.Context, guild *disgate.Guild) bool {
	if guild == nil {
		return false
	}

	c.mu.Lock()
	if guild.Unavailable {
		c.pending[guild.ID] = struct{}{}
	}
	issue := c.shouldFetchLocked(guild)
	c.mu.Unlock()

	if issue {
		c.issueFetch(ctx, guild.ID)
	}

	return issue
}

// GuildAvailable ingests a full (non-partial) guild snapshot arriving after
// bootstrap. The guild leaves the pending set regardless of size; a guild at
// or below the threshold already has its full roster from the snapshot.
func (c *MemberChunkCoordinator) GuildAvailable(ctx context.Context, guild *disgate.Guild) bool {
	if guild == nil {
		return false
	}

	c.mu.Lock()
	delete(c.pending, guild.ID)
	issue := c.shouldFetchLocked(guild)
	c.mu.Unlock()

	if issue {
		c.issueFetch(ctx, guild.ID)
	}

	return issue
}

// ChunkReceived records one bulk roster response page. The final page clears
// the outstanding marker so a later availability signal may fetch again.
func (c *MemberChunkCoordinator) ChunkReceived(guildID string, final bool) {
	if !final {
		return
	}

	c.mu.Lock()
	delete(c.outstanding, guildID)
	c.mu.Unlock()
}

// GuildRemoved drops all tracking for a deleted guild.
func (c *MemberChunkCoordinator) GuildRemoved(guildID string) {
	c.mu.Lock()
	delete(c.pending, guildID)
	delete(c.outstanding, guildID)
	c.mu.Unlock()
}

// HasPending reports whether a guild still owes its full snapshot.
func (c *MemberChunkCoordinator) HasPending(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, pending := c.pending[guildID]

	return pending
}

// shouldFetchLocked decides whether a fetch must be issued and, when so,
// marks the guild outstanding. The outstanding set is the duplicate guard.
func (c *MemberChunkCoordinator) shouldFetchLocked(guild *disgate.Guild) bool {
	if !c.enabled || guild.MemberCount <= c.threshold {
		return false
	}
	if _, inFlight := c.outstanding[guild.ID]; inFlight {
		return false
	}
	c.outstanding[guild.ID] = struct{}{}

	return true
}

// issueFetch sends one unbounded, presence-including roster request. The
// requester contract is fire-and-forget, so issuance never blocks the
// dispatch loop; failures are downgraded to the async error sink and a
// warning notification, never raised.
func (c *MemberChunkCoordinator) issueFetch(ctx context.Context, guildID string) {
	req := disgate.MemberFetchRequest{
		GuildID:   guildID,
		Limit:     0,
		Presences: true,
		Nonce:     c.newNonce(),
	}

	err := runSafely("fetch guild members "+guildID, func() error {
		return c.requester.RequestGuildMembers(ctx, req)
	})
	if err == nil {
		return
	}
	err = fmt.Errorf("guild %s: %w", guildID, err)
	if c.onAsyncError != nil {
		c.onAsyncError(ctx, "member_chunk_fetch", err)
	}
	if c.onWarning != nil {
		c.onWarning(ctx, err)
	}
}
