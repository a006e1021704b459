package state

import (
	"context"
	"encoding/json"
	"fmt"

	"disgate/pkg/disgate"
)

// handleGuildCreate processes a full guild snapshot: a newly joined guild or
// a previously unavailable one recovering.
func (e *Engine) handleGuildCreate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.GuildPatch](disgate.EventGuildCreate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("guild create payload: missing id")
	}

	available := patch.Unavailable == nil || !*patch.Unavailable
	existing, found := e.store.Guilds.Get(patch.ID)
	fromUnavailable := found && existing.Unavailable && available

	guild, _ := Resolve(e.store.Guilds, patch.ID, patch, disgate.NewGuild)
	// A snapshot may omit the unavailable field entirely; receiving one at
	// all means the guild is reachable unless the payload says otherwise.
	guild.Unavailable = !available
	e.applyGuildSnapshot(guild, patch)
	if available {
		e.chunks.GuildAvailable(ctx, guild)
	}

	kind := disgate.KindGuildCreate
	if fromUnavailable {
		kind = disgate.KindGuildAvailable
	}
	e.emit(ctx, &disgate.Notification{
		Kind:            kind,
		Seq:             seq,
		Guild:           guild,
		FromUnavailable: fromUnavailable,
	})

	return nil
}

// handleGuildUpdate merges changed guild attributes, diffing lazily.
func (e *Engine) handleGuildUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.GuildPatch](disgate.EventGuildUpdate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("guild update payload: missing id")
	}

	var differences disgate.Differences
	if before, found := e.store.Guilds.Get(patch.ID); found {
		differences = e.changes.DiffIfObserved(disgate.KindGuildUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}
	guild, _ := Resolve(e.store.Guilds, patch.ID, patch, disgate.NewGuild)

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindGuildUpdate,
		Seq:         seq,
		Guild:       guild,
		Differences: differences,
	})

	return nil
}

// handleGuildDelete removes a guild and cascades over everything scoped
// under it, or merely degrades it when the payload marks it unavailable.
func (e *Engine) handleGuildDelete(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.GuildPatch](disgate.EventGuildDelete, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("guild delete payload: missing id")
	}

	if patch.Unavailable != nil && *patch.Unavailable {
		guild, _ := Resolve(e.store.Guilds, patch.ID, patch, disgate.NewGuild)
		e.emit(ctx, &disgate.Notification{
			Kind:  disgate.KindGuildUnavailable,
			Seq:   seq,
			Guild: guild,
		})
		return nil
	}

	guild, _ := e.store.Guilds.Delete(patch.ID)
	e.store.Members.DeleteTier(patch.ID)
	e.store.Presences.DeleteTier(patch.ID)
	e.store.VoiceStates.DeleteTier(patch.ID)
	e.chunks.GuildRemoved(patch.ID)

	// Emojis are stored flat but scoped by reference, so the cascade is an
	// explicit scan.
	var ownedEmojis []string
	e.store.Emojis.Range(func(emoji *disgate.Emoji) bool {
		if emoji.GuildID == patch.ID {
			ownedEmojis = append(ownedEmojis, emoji.ID)
		}
		return true
	})
	for _, emojiID := range ownedEmojis {
		e.store.Emojis.Delete(emojiID)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:  disgate.KindGuildDelete,
		Seq:   seq,
		Guild: guild,
	})

	return nil
}

type guildBanPayload struct {
	GuildID string             `json:"guild_id"`
	User    *disgate.UserPatch `json:"user"`
}

// handleGuildBanAdd records the banned user and notifies; roster removal
// arrives as its own member-remove event.
func (e *Engine) handleGuildBanAdd(ctx context.Context, seq int64, data json.RawMessage) error {
	return e.handleGuildBan(ctx, disgate.KindGuildBanAdd, disgate.EventGuildBanAdd, seq, data)
}

// handleGuildBanRemove records the unbanned user and notifies.
func (e *Engine) handleGuildBanRemove(ctx context.Context, seq int64, data json.RawMessage) error {
	return e.handleGuildBan(ctx, disgate.KindGuildBanRemove, disgate.EventGuildBanRemove, seq, data)
}

func (e *Engine) handleGuildBan(ctx context.Context, kind disgate.Kind, event string, seq int64, data json.RawMessage) error {
	payload, err := decode[guildBanPayload](event, data)
	if err != nil {
		return err
	}

	guild, _ := e.store.Guilds.Get(payload.GuildID)
	e.emit(ctx, &disgate.Notification{
		Kind:  kind,
		Seq:   seq,
		Guild: guild,
		User:  e.resolveUser(payload.User),
	})

	return nil
}

type guildEmojisPayload struct {
	GuildID string                `json:"guild_id"`
	Emojis  []*disgate.EmojiPatch `json:"emojis"`
}

// handleGuildEmojisUpdate replaces a guild's emoji set: entries missing from
// the payload are dropped, the rest merge in place.
func (e *Engine) handleGuildEmojisUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[guildEmojisPayload](disgate.EventGuildEmojisUpdate, data)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(payload.Emojis))
	for _, emojiPatch := range payload.Emojis {
		if applied := e.applyEmoji(payload.GuildID, emojiPatch); applied != nil {
			keep[applied.ID] = struct{}{}
		}
	}
	var dropped []string
	e.store.Emojis.Range(func(emoji *disgate.Emoji) bool {
		if emoji.GuildID == payload.GuildID {
			if _, kept := keep[emoji.ID]; !kept {
				dropped = append(dropped, emoji.ID)
			}
		}
		return true
	})
	for _, emojiID := range dropped {
		e.store.Emojis.Delete(emojiID)
	}

	guild, _ := e.store.Guilds.Get(payload.GuildID)
	e.emit(ctx, &disgate.Notification{
		Kind:  disgate.KindGuildEmojisUpdate,
		Seq:   seq,
		Guild: guild,
	})

	return nil
}

// handleGuildMemberAdd merges the new roster member and keeps the guild's
// derived member counter in step with actual membership.
func (e *Engine) handleGuildMemberAdd(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.MemberPatch](disgate.EventGuildMemberAdd, data)
	if err != nil {
		return err
	}
	if patch.GuildID == "" || patch.UserID() == "" {
		return fmt.Errorf("guild member add payload: missing guild or user id")
	}

	// Replayed adds for an already-rostered member must not inflate the
	// counter.
	_, existed := e.store.Members.Get(patch.GuildID, patch.UserID())
	member := e.applyMember(patch.GuildID, patch)
	guild, found := e.store.Guilds.Get(patch.GuildID)
	if found && !existed {
		guild.MemberCount++
	}

	e.emit(ctx, &disgate.Notification{
		Kind:   disgate.KindMemberAdd,
		Seq:    seq,
		Guild:  guild,
		Member: member,
	})

	return nil
}

// handleGuildMemberUpdate merges changed roster attributes, diffing lazily.
func (e *Engine) handleGuildMemberUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.MemberPatch](disgate.EventGuildMemberUpdate, data)
	if err != nil {
		return err
	}
	if patch.GuildID == "" || patch.UserID() == "" {
		return fmt.Errorf("guild member update payload: missing guild or user id")
	}

	var differences disgate.Differences
	if before, found := e.store.Members.Get(patch.GuildID, patch.UserID()); found {
		differences = e.changes.DiffIfObserved(disgate.KindMemberUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}
	member := e.applyMember(patch.GuildID, patch)
	guild, _ := e.store.Guilds.Get(patch.GuildID)

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindMemberUpdate,
		Seq:         seq,
		Guild:       guild,
		Member:      member,
		Differences: differences,
	})

	return nil
}

// handleGuildMemberRemove evicts the roster member. The derived member
// counter moves only on an actual eviction and is floored at zero.
func (e *Engine) handleGuildMemberRemove(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.MemberPatch](disgate.EventGuildMemberRemove, data)
	if err != nil {
		return err
	}
	if patch.GuildID == "" || patch.UserID() == "" {
		return fmt.Errorf("guild member remove payload: missing guild or user id")
	}

	member, evicted := e.store.Members.Delete(patch.GuildID, patch.UserID())
	guild, found := e.store.Guilds.Get(patch.GuildID)
	if found && evicted && guild.MemberCount > 0 {
		guild.MemberCount--
	}

	e.emit(ctx, &disgate.Notification{
		Kind:   disgate.KindMemberRemove,
		Seq:    seq,
		Guild:  guild,
		Member: member,
		User:   e.resolveUser(patch.User),
	})

	return nil
}

type memberChunkPayload struct {
	GuildID    string                   `json:"guild_id"`
	Members    []*disgate.MemberPatch   `json:"members"`
	Presences  []*disgate.PresencePatch `json:"presences,omitempty"`
	ChunkIndex *int                     `json:"chunk_index,omitempty"`
	ChunkCount *int                     `json:"chunk_count,omitempty"`
	Nonce      string                   `json:"nonce,omitempty"`
}

// handleGuildMembersChunk merges one bulk roster response page. It is the
// fetch's result, not an availability signal, so it only clears the
// outstanding-fetch marker on the final page.
func (e *Engine) handleGuildMembersChunk(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[memberChunkPayload](disgate.EventGuildMembersChunk, data)
	if err != nil {
		return err
	}
	if payload.GuildID == "" {
		return fmt.Errorf("guild members chunk payload: missing guild id")
	}

	members := make([]*disgate.Member, 0, len(payload.Members))
	for _, memberPatch := range payload.Members {
		if member := e.applyMember(payload.GuildID, memberPatch); member != nil {
			members = append(members, member)
		}
	}
	for _, presencePatch := range payload.Presences {
		if presencePatch.GuildID == "" {
			presencePatch.GuildID = payload.GuildID
		}
		e.mergePresence(presencePatch)
	}

	final := true
	if payload.ChunkIndex != nil && payload.ChunkCount != nil {
		final = *payload.ChunkIndex+1 >= *payload.ChunkCount
	}
	e.chunks.ChunkReceived(payload.GuildID, final)

	guild, _ := e.store.Guilds.Get(payload.GuildID)
	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindMemberChunk,
		Seq:     seq,
		Guild:   guild,
		Members: members,
	})

	return nil
}

type guildRolePayload struct {
	GuildID string             `json:"guild_id"`
	Role    *disgate.RolePatch `json:"role,omitempty"`
	RoleID  string             `json:"role_id,omitempty"`
}

// handleGuildRoleCreate adds a role to its owning guild's role set.
func (e *Engine) handleGuildRoleCreate(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[guildRolePayload](disgate.EventGuildRoleCreate, data)
	if err != nil {
		return err
	}

	guild, found := e.store.Guilds.Get(payload.GuildID)
	var role *disgate.Role
	if found && payload.Role != nil {
		role = guild.ResolveRole(payload.Role)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:  disgate.KindRoleCreate,
		Seq:   seq,
		Guild: guild,
		Role:  role,
	})

	return nil
}

// handleGuildRoleUpdate merges changed role attributes, diffing lazily.
func (e *Engine) handleGuildRoleUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[guildRolePayload](disgate.EventGuildRoleUpdate, data)
	if err != nil {
		return err
	}

	guild, found := e.store.Guilds.Get(payload.GuildID)
	var role *disgate.Role
	var differences disgate.Differences
	if found && payload.Role != nil {
		if before, exists := guild.Roles[payload.Role.ID]; exists {
			differences = e.changes.DiffIfObserved(disgate.KindRoleUpdate, func() disgate.Differences {
				return payload.Role.Diff(before)
			})
		}
		role = guild.ResolveRole(payload.Role)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindRoleUpdate,
		Seq:         seq,
		Guild:       guild,
		Role:        role,
		Differences: differences,
	})

	return nil
}

// handleGuildRoleDelete removes a role from its owning guild's role set.
func (e *Engine) handleGuildRoleDelete(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[guildRolePayload](disgate.EventGuildRoleDelete, data)
	if err != nil {
		return err
	}

	guild, found := e.store.Guilds.Get(payload.GuildID)
	var role *disgate.Role
	if found {
		role, _ = guild.RemoveRole(payload.RoleID)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:  disgate.KindRoleDelete,
		Seq:   seq,
		Guild: guild,
		Role:  role,
	})

	return nil
}
