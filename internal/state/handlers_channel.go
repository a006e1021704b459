package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"disgate/pkg/disgate"
)

// handleChannelCreate merges a new guild or direct channel.
func (e *Engine) handleChannelCreate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.ChannelPatch](disgate.EventChannelCreate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("channel create payload: missing id")
	}

	channel := e.applyChannel(patch)
	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindChannelCreate,
		Seq:     seq,
		Channel: channel,
	})

	return nil
}

// handleChannelUpdate merges changed channel attributes, diffing lazily.
func (e *Engine) handleChannelUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.ChannelPatch](disgate.EventChannelUpdate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("channel update payload: missing id")
	}

	var differences disgate.Differences
	if before, found := e.store.Channels.Get(patch.ID); found {
		differences = e.changes.DiffIfObserved(disgate.KindChannelUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}
	channel := e.applyChannel(patch)

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindChannelUpdate,
		Seq:         seq,
		Channel:     channel,
		Differences: differences,
	})

	return nil
}

// handleChannelDelete removes a channel, its typing tier, and any voice
// states whose channel reference it was.
func (e *Engine) handleChannelDelete(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.ChannelPatch](disgate.EventChannelDelete, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("channel delete payload: missing id")
	}

	channel, found := e.store.Channels.Delete(patch.ID)
	e.store.Typing.DeleteTier(patch.ID)
	if found {
		e.dropChannelVoiceStates(channel)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindChannelDelete,
		Seq:     seq,
		Channel: channel,
	})

	return nil
}

// dropChannelVoiceStates deletes voice states that referenced the removed
// channel. Direct channels are themselves the voice tier key; guild channels
// require a scan of the guild tier.
func (e *Engine) dropChannelVoiceStates(channel *disgate.Channel) {
	if channel.IsDirect() {
		e.store.VoiceStates.DeleteTier(channel.ID)
		return
	}
	tier, exists := e.store.VoiceStates.TierIfExists(channel.GuildID)
	if !exists {
		return
	}
	var left []string
	tier.Range(func(state *disgate.VoiceState) bool {
		if state.ChannelID == channel.ID {
			left = append(left, state.CacheKey())
		}
		return true
	})
	for _, key := range left {
		tier.Delete(key)
	}
}

type channelRecipientPayload struct {
	ChannelID string             `json:"channel_id"`
	User      *disgate.UserPatch `json:"user"`
}

// handleChannelRecipientAdd attaches a user to a group channel.
func (e *Engine) handleChannelRecipientAdd(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[channelRecipientPayload](disgate.EventChannelRecipientAdd, data)
	if err != nil {
		return err
	}

	user := e.resolveUser(payload.User)
	channel, found := e.store.Channels.Get(payload.ChannelID)
	if found {
		channel.AddRecipient(user)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindChannelRecipientAdd,
		Seq:     seq,
		Channel: channel,
		User:    user,
	})

	return nil
}

// handleChannelRecipientRemove detaches a user from a group channel.
func (e *Engine) handleChannelRecipientRemove(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[channelRecipientPayload](disgate.EventChannelRecipientRemove, data)
	if err != nil {
		return err
	}

	user := e.resolveUser(payload.User)
	channel, found := e.store.Channels.Get(payload.ChannelID)
	if found && payload.User != nil {
		channel.RemoveRecipient(payload.User.ID)
	}

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindChannelRecipientRemove,
		Seq:     seq,
		Channel: channel,
		User:    user,
	})

	return nil
}

type typingStartPayload struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

// handleTypingStart upserts an ephemeral typing indicator. No gateway event
// ever deletes these; Store.PruneTyping exists for the owner's timer.
func (e *Engine) handleTypingStart(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[typingStartPayload](disgate.EventTypingStart, data)
	if err != nil {
		return err
	}
	if payload.ChannelID == "" || payload.UserID == "" {
		return fmt.Errorf("typing start payload: missing channel or user id")
	}

	startedAt := time.Unix(payload.Timestamp, 0).UTC()
	tier := e.store.Typing.Tier(payload.ChannelID)
	indicator, found := tier.Get(payload.UserID)
	if found {
		indicator.StartedAt = startedAt
	} else {
		indicator = &disgate.TypingIndicator{
			ChannelID: payload.ChannelID,
			GuildID:   payload.GuildID,
			UserID:    payload.UserID,
			StartedAt: startedAt,
		}
		tier.Put(indicator)
	}

	channel, _ := e.store.Channels.Get(payload.ChannelID)
	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindTypingStart,
		Seq:     seq,
		Channel: channel,
		Typing:  indicator,
	})

	return nil
}
