package state

import (
	"context"
	"encoding/json"
	"fmt"

	"disgate/pkg/disgate"
)

// decode unmarshals one dispatch payload with event name context.
func decode[T any](event string, data json.RawMessage) (*T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event, err)
	}

	return &payload, nil
}

type readyPayload struct {
	Version         int                          `json:"v"`
	SessionID       string                       `json:"session_id"`
	User            *disgate.UserPatch           `json:"user"`
	Guilds          []*disgate.GuildPatch        `json:"guilds"`
	PrivateChannels []*disgate.ChannelPatch      `json:"private_channels"`
	Relationships   []*disgate.RelationshipPatch `json:"relationships"`
	Presences       []*disgate.PresencePatch     `json:"presences"`
}

// handleReady applies the bootstrap snapshot. It is the single point in the
// connection lifecycle where all caches are reset before repopulation.
func (e *Engine) handleReady(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[readyPayload](disgate.EventReady, data)
	if err != nil {
		return err
	}
	if payload.User == nil || payload.User.ID == "" {
		return fmt.Errorf("ready payload: missing self user")
	}

	e.store.Reset()
	e.chunks.Reset()

	self, _ := Resolve(e.store.Users, payload.User.ID, payload.User, disgate.NewUser)
	e.store.SetSelfID(self.ID)

	for _, channelPatch := range payload.PrivateChannels {
		e.applyChannel(channelPatch)
	}
	for _, guildPatch := range payload.Guilds {
		guild, _ := Resolve(e.store.Guilds, guildPatch.ID, guildPatch, disgate.NewGuild)
		e.applyGuildSnapshot(guild, guildPatch)
		e.chunks.Bootstrap(ctx, guild)
	}
	for _, relationshipPatch := range payload.Relationships {
		e.applyRelationship(relationshipPatch)
	}
	for _, presencePatch := range payload.Presences {
		e.mergePresence(presencePatch)
	}

	e.enrichInBackground(ctx)

	e.emit(ctx, &disgate.Notification{
		Kind: disgate.KindReady,
		Seq:  seq,
		User: self,
	})

	return nil
}

// handleResumed acknowledges a resumed session; the caches are already
// consistent up to the replayed sequence.
func (e *Engine) handleResumed(ctx context.Context, seq int64, _ json.RawMessage) error {
	e.emit(ctx, &disgate.Notification{
		Kind: disgate.KindResumed,
		Seq:  seq,
	})

	return nil
}

// enrichInBackground issues the post-bootstrap enrichment call without
// blocking the dispatch loop. Failure is downgraded to a warning
// notification; it is never fatal to the session.
func (e *Engine) enrichInBackground(ctx context.Context) {
	if e.requester == nil {
		return
	}

	go func() {
		err := runSafely("post-bootstrap enrichment", func() error {
			return e.requester.Enrich(ctx)
		})
		if err == nil {
			return
		}
		e.cfg.onAsyncError(ctx, "enrichment", err)
		e.emit(ctx, &disgate.Notification{
			Kind: disgate.KindWarning,
			Err:  err,
		})
	}()
}

// applyGuildSnapshot fans a guild snapshot's nested collections out into
// their repositories and tiers, vivifying the guild's tiers so the scope is
// active even when every nested collection is empty.
func (e *Engine) applyGuildSnapshot(guild *disgate.Guild, patch *disgate.GuildPatch) {
	e.store.Members.Tier(guild.ID)
	e.store.Presences.Tier(guild.ID)
	e.store.VoiceStates.Tier(guild.ID)

	for _, emojiPatch := range patch.Emojis {
		e.applyEmoji(guild.ID, emojiPatch)
	}
	for _, channelPatch := range patch.Channels {
		if channelPatch.GuildID == nil {
			guildID := guild.ID
			channelPatch.GuildID = &guildID
		}
		e.applyChannel(channelPatch)
	}
	for _, memberPatch := range patch.Members {
		e.applyMember(guild.ID, memberPatch)
	}
	for _, presencePatch := range patch.Presences {
		if presencePatch.GuildID == "" {
			presencePatch.GuildID = guild.ID
		}
		e.mergePresence(presencePatch)
	}
	for _, voicePatch := range patch.VoiceStates {
		if voicePatch.GuildID == "" {
			voicePatch.GuildID = guild.ID
		}
		if voicePatch.Left() || voicePatch.UserID == "" {
			continue
		}
		ResolveTier(e.store.VoiceStates, guild.ID, voicePatch.UserID, voicePatch,
			func(p *disgate.VoiceStatePatch) *disgate.VoiceState {
				return disgate.NewVoiceState(guild.ID, p)
			})
	}
}

// applyChannel merges one channel payload, resolving any direct-channel
// recipients through the global user repository.
func (e *Engine) applyChannel(patch *disgate.ChannelPatch) *disgate.Channel {
	if patch == nil || patch.ID == "" {
		return nil
	}
	channel, _ := Resolve(e.store.Channels, patch.ID, patch, disgate.NewChannel)
	for _, recipientPatch := range patch.Recipients {
		channel.AddRecipient(e.resolveUser(recipientPatch))
	}

	return channel
}

// applyEmoji merges one emoji payload into the flat emoji repository,
// stamping its owning guild reference.
func (e *Engine) applyEmoji(guildID string, patch *disgate.EmojiPatch) *disgate.Emoji {
	if patch == nil || patch.ID == "" {
		return nil
	}
	emoji, _ := Resolve(e.store.Emojis, patch.ID, patch, func(p *disgate.EmojiPatch) *disgate.Emoji {
		created := &disgate.Emoji{ID: p.ID, GuildID: guildID}
		created.ApplyPatch(p)
		return created
	})

	return emoji
}

// applyMember merges one roster payload into a guild tier and keeps the
// member's global user reference attached.
func (e *Engine) applyMember(guildID string, patch *disgate.MemberPatch) *disgate.Member {
	if patch == nil || patch.UserID() == "" {
		return nil
	}
	user := e.resolveUser(patch.User)
	member, _ := ResolveTier(e.store.Members, guildID, patch.UserID(), patch,
		func(p *disgate.MemberPatch) *disgate.Member {
			return disgate.NewMember(guildID, p)
		})
	if user != nil {
		member.User = user
	}

	return member
}

// applyRelationship merges one relationship payload, resolving its embedded
// user.
func (e *Engine) applyRelationship(patch *disgate.RelationshipPatch) *disgate.Relationship {
	if patch == nil || patch.ID == "" {
		return nil
	}
	relationship, _ := Resolve(e.store.Relationships, patch.ID, patch, disgate.NewRelationship)
	if user := e.resolveUser(patch.User); user != nil {
		relationship.User = user
	}

	return relationship
}
