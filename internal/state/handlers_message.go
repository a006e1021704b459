package state

import (
	"context"
	"encoding/json"
	"fmt"

	"disgate/pkg/disgate"
)

// handleMessageCreate merges a new message and advances the containing
// channel's last-message marker.
func (e *Engine) handleMessageCreate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.MessagePatch](disgate.EventMessageCreate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("message create payload: missing id")
	}

	author := e.resolveUser(patch.Author)
	message, _ := Resolve(e.store.Messages, patch.ID, patch, disgate.NewMessage)
	if author != nil {
		message.Author = author
	}
	channel, found := e.store.Channels.Get(message.ChannelID)
	if found {
		channel.LastMessageID = message.ID
	}

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindMessageCreate,
		Seq:     seq,
		Channel: channel,
		Message: message,
	})

	return nil
}

// handleMessageUpdate merges a message edit, diffing lazily against the
// cached copy. An edit for an uncached message still notifies with a nil
// message reference instead of being dropped.
func (e *Engine) handleMessageUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.MessagePatch](disgate.EventMessageUpdate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("message update payload: missing id")
	}

	before, found := e.store.Messages.Get(patch.ID)
	var message *disgate.Message
	var differences disgate.Differences
	if found {
		differences = e.changes.DiffIfObserved(disgate.KindMessageUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
		before.ApplyPatch(patch)
		message = before
		if author := e.resolveUser(patch.Author); author != nil {
			message.Author = author
		}
	}

	channel, _ := e.store.Channels.Get(patch.ChannelID)
	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindMessageUpdate,
		Seq:         seq,
		Channel:     channel,
		Message:     message,
		Differences: differences,
	})

	return nil
}

type messageDeletePayload struct {
	ID        string   `json:"id,omitempty"`
	IDs       []string `json:"ids,omitempty"`
	ChannelID string   `json:"channel_id"`
}

// handleMessageDelete evicts one message; an uncached target still notifies
// with a nil reference.
func (e *Engine) handleMessageDelete(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[messageDeletePayload](disgate.EventMessageDelete, data)
	if err != nil {
		return err
	}

	message, _ := e.store.Messages.Delete(payload.ID)
	channel, _ := e.store.Channels.Get(payload.ChannelID)

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindMessageDelete,
		Seq:     seq,
		Channel: channel,
		Message: message,
	})

	return nil
}

// handleMessageDeleteBulk evicts a batch of messages and notifies once for
// the whole batch.
func (e *Engine) handleMessageDeleteBulk(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[messageDeletePayload](disgate.EventMessageDeleteBulk, data)
	if err != nil {
		return err
	}

	for _, messageID := range payload.IDs {
		e.store.Messages.Delete(messageID)
	}
	channel, _ := e.store.Channels.Get(payload.ChannelID)

	e.emit(ctx, &disgate.Notification{
		Kind:       disgate.KindMessageDeleteBulk,
		Seq:        seq,
		Channel:    channel,
		MessageIDs: payload.IDs,
	})

	return nil
}

type reactionPayload struct {
	UserID    string           `json:"user_id"`
	ChannelID string           `json:"channel_id"`
	MessageID string           `json:"message_id"`
	Emoji     disgate.EmojiRef `json:"emoji"`
}

// handleMessageReactionAdd increments a reaction entry, constructing it on
// first reference and raising the self-reacted flag when the actor is the
// local identity.
func (e *Engine) handleMessageReactionAdd(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[reactionPayload](disgate.EventMessageReactionAdd, data)
	if err != nil {
		return err
	}

	self := payload.UserID != "" && payload.UserID == e.store.SelfID()
	message, found := e.store.Messages.Get(payload.MessageID)
	var reaction *disgate.Reaction
	if found {
		reaction = message.AddReaction(payload.Emoji, self)
	}

	channel, _ := e.store.Channels.Get(payload.ChannelID)
	e.emit(ctx, &disgate.Notification{
		Kind:     disgate.KindReactionAdd,
		Seq:      seq,
		Channel:  channel,
		Message:  message,
		Reaction: reaction,
		Emoji:    &payload.Emoji,
	})

	return nil
}

// handleMessageReactionRemove decrements a reaction entry, flooring at zero
// and dropping the entry once empty. An uncached message creates nothing;
// the event still notifies with nil references.
func (e *Engine) handleMessageReactionRemove(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[reactionPayload](disgate.EventMessageReactionRemove, data)
	if err != nil {
		return err
	}

	self := payload.UserID != "" && payload.UserID == e.store.SelfID()
	message, found := e.store.Messages.Get(payload.MessageID)
	var reaction *disgate.Reaction
	if found {
		reaction = message.RemoveReaction(payload.Emoji, self)
	}

	channel, _ := e.store.Channels.Get(payload.ChannelID)
	e.emit(ctx, &disgate.Notification{
		Kind:     disgate.KindReactionRemove,
		Seq:      seq,
		Channel:  channel,
		Message:  message,
		Reaction: reaction,
		Emoji:    &payload.Emoji,
	})

	return nil
}

// handleMessageReactionRemoveAll clears a message's reaction set.
func (e *Engine) handleMessageReactionRemoveAll(ctx context.Context, seq int64, data json.RawMessage) error {
	payload, err := decode[reactionPayload](disgate.EventMessageReactionRemoveAll, data)
	if err != nil {
		return err
	}

	message, found := e.store.Messages.Get(payload.MessageID)
	if found {
		message.ClearReactions()
	}

	channel, _ := e.store.Channels.Get(payload.ChannelID)
	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindReactionRemoveAll,
		Seq:     seq,
		Channel: channel,
		Message: message,
	})

	return nil
}
