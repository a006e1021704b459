package disgate

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a normalized outward notification.
type Kind string

const (
	// KindReady fires once per session after the bootstrap snapshot.
	KindReady Kind = "session.ready"
	// KindResumed fires when a prior session resumes.
	KindResumed Kind = "session.resumed"
	// KindRaw fires for every dispatch packet when raw passthrough is enabled.
	KindRaw Kind = "raw"
	// KindUnknown fires for dispatch packets with unrecognized event names.
	KindUnknown Kind = "unknown"
	// KindWarning carries non-fatal background failures.
	KindWarning Kind = "warning"

	// KindGuildCreate fires for newly joined guilds.
	KindGuildCreate Kind = "guild.create"
	// KindGuildAvailable fires when a previously unavailable guild recovers.
	KindGuildAvailable Kind = "guild.available"
	// KindGuildUpdate fires when guild attributes change.
	KindGuildUpdate Kind = "guild.update"
	// KindGuildUnavailable fires when a guild degrades without being left.
	KindGuildUnavailable Kind = "guild.unavailable"
	// KindGuildDelete fires when a guild is removed along with everything
	// scoped under it.
	KindGuildDelete Kind = "guild.delete"
	// KindGuildBanAdd fires when a user is banned from a guild.
	KindGuildBanAdd Kind = "guild.ban.add"
	// KindGuildBanRemove fires when a guild ban is lifted.
	KindGuildBanRemove Kind = "guild.ban.remove"
	// KindGuildEmojisUpdate fires when a guild's emoji set is replaced.
	KindGuildEmojisUpdate Kind = "guild.emojis.update"
	// KindMemberAdd fires when a member joins a guild roster.
	KindMemberAdd Kind = "member.add"
	// KindMemberUpdate fires when roster attributes change.
	KindMemberUpdate Kind = "member.update"
	// KindMemberRemove fires when a member leaves a guild roster.
	KindMemberRemove Kind = "member.remove"
	// KindMemberChunk fires per bulk roster response page.
	KindMemberChunk Kind = "member.chunk"
	// KindRoleCreate fires when a guild role is created.
	KindRoleCreate Kind = "role.create"
	// KindRoleUpdate fires when a guild role changes.
	KindRoleUpdate Kind = "role.update"
	// KindRoleDelete fires when a guild role is deleted.
	KindRoleDelete Kind = "role.delete"
	// KindChannelCreate fires when a channel is created or first seen.
	KindChannelCreate Kind = "channel.create"
	// KindChannelUpdate fires when channel attributes change.
	KindChannelUpdate Kind = "channel.update"
	// KindChannelDelete fires when a channel is removed.
	KindChannelDelete Kind = "channel.delete"
	// KindChannelRecipientAdd fires when a user joins a group channel.
	KindChannelRecipientAdd Kind = "channel.recipient.add"
	// KindChannelRecipientRemove fires when a user leaves a group channel.
	KindChannelRecipientRemove Kind = "channel.recipient.remove"
	// KindMessageCreate fires for new messages.
	KindMessageCreate Kind = "message.create"
	// KindMessageUpdate fires for message edits.
	KindMessageUpdate Kind = "message.update"
	// KindMessageDelete fires for single message deletions.
	KindMessageDelete Kind = "message.delete"
	// KindMessageDeleteBulk fires once per bulk deletion.
	KindMessageDeleteBulk Kind = "message.delete.bulk"
	// KindReactionAdd fires when a reaction is added to a message.
	KindReactionAdd Kind = "reaction.add"
	// KindReactionRemove fires when a reaction is removed from a message.
	KindReactionRemove Kind = "reaction.remove"
	// KindReactionRemoveAll fires when a message's reactions are cleared.
	KindReactionRemoveAll Kind = "reaction.remove.all"
	// KindPresenceUpdate fires when a user's presence changes.
	KindPresenceUpdate Kind = "presence.update"
	// KindTypingStart fires when a user starts typing.
	KindTypingStart Kind = "typing.start"
	// KindUserUpdate fires when the local user's record changes.
	KindUserUpdate Kind = "user.update"
	// KindVoiceStateUpdate fires when a user's voice state changes.
	KindVoiceStateUpdate Kind = "voice.state.update"
	// KindCallCreate fires when a direct call starts ringing.
	KindCallCreate Kind = "call.create"
	// KindCallUpdate fires when call attributes change.
	KindCallUpdate Kind = "call.update"
	// KindCallDelete fires when a call reaches its terminal killed state.
	KindCallDelete Kind = "call.delete"
	// KindRelationshipAdd fires when a relationship is added.
	KindRelationshipAdd Kind = "relationship.add"
	// KindRelationshipRemove fires when a relationship is removed.
	KindRelationshipRemove Kind = "relationship.remove"
)

// FieldChange captures one field transition inside a diff.
type FieldChange struct {
	Before any
	After  any
}

// Differences maps changed field names to their transitions. A nil value
// means no observer required the diff, not that nothing changed.
type Differences map[string]FieldChange

// RawEvent carries an untouched dispatch payload for raw passthrough and
// unknown-event notifications.
type RawEvent struct {
	Name string
	Data json.RawMessage
}

// Notification is the normalized envelope emitted once per processed event.
//
// Payload branches are optional and selected by Kind; entity fields carry
// live cache references, never raw payload fields. Referential misses leave
// entity references nil rather than suppressing the notification.
type Notification struct {
	// ID is a session-local identifier for this notification instance.
	ID string
	// Kind selects which payload branches are populated.
	Kind Kind
	// Seq is the gateway sequence number of the originating packet.
	Seq int64

	Guild        *Guild
	Channel      *Channel
	User         *User
	Member       *Member
	Members      []*Member
	Role         *Role
	Presence     *Presence
	Message      *Message
	MessageIDs   []string
	Reaction     *Reaction
	Emoji        *EmojiRef
	VoiceState   *VoiceState
	Call         *Call
	Relationship *Relationship
	Typing       *TypingIndicator

	// Differences carries the lazily computed field diff for update kinds.
	Differences Differences

	// FromUnavailable marks a guild.available transition out of the
	// degraded state.
	FromUnavailable bool
	// LeftChannel marks a voice update that cleared the channel reference.
	LeftChannel bool
	// IsGuildPresence distinguishes guild presences from global ones.
	IsGuildPresence bool

	// Raw carries the untouched payload for raw and unknown notifications.
	Raw *RawEvent
	// Err carries the original failure for warning notifications.
	Err error
}

// Validate checks envelope coherence before publication.
func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil notification", ErrInvalidNotification)
	}
	if n.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidNotification)
	}
	switch n.Kind {
	case KindRaw, KindUnknown:
		if n.Raw == nil {
			return fmt.Errorf("%w: %s requires raw payload", ErrInvalidNotification, n.Kind)
		}
	case KindWarning:
		if n.Err == nil {
			return fmt.Errorf("%w: warning requires an error", ErrInvalidNotification)
		}
	}

	return nil
}
