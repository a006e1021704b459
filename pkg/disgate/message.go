package disgate

import "time"

// Message belongs to a channel and owns a reaction set keyed by emoji
// identity.
type Message struct {
	ID              string
	ChannelID       string
	GuildID         string
	Author          *User
	Content         string
	Timestamp       time.Time
	EditedTimestamp time.Time
	Pinned          bool
	TTS             bool
	Reactions       map[string]*Reaction
}

// CacheKey returns the repository key for this message.
func (m *Message) CacheKey() string { return m.ID }

// MessagePatch is a partial message payload.
type MessagePatch struct {
	ID              string     `json:"id"`
	ChannelID       string     `json:"channel_id,omitempty"`
	GuildID         *string    `json:"guild_id,omitempty"`
	Author          *UserPatch `json:"author,omitempty"`
	Content         *string    `json:"content,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	EditedTimestamp *time.Time `json:"edited_timestamp,omitempty"`
	Pinned          *bool      `json:"pinned,omitempty"`
	TTS             *bool      `json:"tts,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch.
func (m *Message) ApplyPatch(p *MessagePatch) {
	if p == nil {
		return
	}
	if p.ChannelID != "" {
		m.ChannelID = p.ChannelID
	}
	if p.GuildID != nil {
		m.GuildID = *p.GuildID
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Timestamp != nil {
		m.Timestamp = *p.Timestamp
	}
	if p.EditedTimestamp != nil {
		m.EditedTimestamp = *p.EditedTimestamp
	}
	if p.Pinned != nil {
		m.Pinned = *p.Pinned
	}
	if p.TTS != nil {
		m.TTS = *p.TTS
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *MessagePatch) Diff(before *Message) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.ChannelID != "" && p.ChannelID != before.ChannelID {
		diff["channel_id"] = FieldChange{Before: before.ChannelID, After: p.ChannelID}
	}
	if p.GuildID != nil && *p.GuildID != before.GuildID {
		diff["guild_id"] = FieldChange{Before: before.GuildID, After: *p.GuildID}
	}
	if p.Content != nil && *p.Content != before.Content {
		diff["content"] = FieldChange{Before: before.Content, After: *p.Content}
	}
	if p.Timestamp != nil && !p.Timestamp.Equal(before.Timestamp) {
		diff["timestamp"] = FieldChange{Before: before.Timestamp, After: *p.Timestamp}
	}
	if p.EditedTimestamp != nil && !p.EditedTimestamp.Equal(before.EditedTimestamp) {
		diff["edited_timestamp"] = FieldChange{Before: before.EditedTimestamp, After: *p.EditedTimestamp}
	}
	if p.Pinned != nil && *p.Pinned != before.Pinned {
		diff["pinned"] = FieldChange{Before: before.Pinned, After: *p.Pinned}
	}
	if p.TTS != nil && *p.TTS != before.TTS {
		diff["tts"] = FieldChange{Before: before.TTS, After: *p.TTS}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewMessage constructs a message from its first observed patch.
func NewMessage(p *MessagePatch) *Message {
	message := &Message{ID: p.ID}
	message.ApplyPatch(p)

	return message
}

// EmojiRef identifies the emoji of a reaction: custom emojis by id, unicode
// emojis by name.
type EmojiRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Key returns the reaction-set key for this emoji identity.
func (e EmojiRef) Key() string {
	if e.ID != "" {
		return e.ID
	}

	return e.Name
}

// Reaction is one emoji-identity entry in a message's reaction set.
type Reaction struct {
	Emoji EmojiRef
	Count int
	// Me reports whether the local identity reacted with this emoji.
	Me bool
}

// AddReaction increments the reaction entry for the emoji, constructing it
// on first reference with pre-increment fields.
func (m *Message) AddReaction(emoji EmojiRef, self bool) *Reaction {
	if m.Reactions == nil {
		m.Reactions = make(map[string]*Reaction)
	}
	key := emoji.Key()
	reaction, exists := m.Reactions[key]
	if !exists {
		reaction = &Reaction{Emoji: emoji}
		m.Reactions[key] = reaction
	}
	reaction.Count++
	if self {
		reaction.Me = true
	}

	return reaction
}

// RemoveReaction decrements the reaction entry for the emoji, flooring the
// count at zero, and drops the entry once the count reaches zero. It returns
// the affected entry or nil when no entry exists.
func (m *Message) RemoveReaction(emoji EmojiRef, self bool) *Reaction {
	key := emoji.Key()
	reaction, exists := m.Reactions[key]
	if !exists {
		return nil
	}
	if reaction.Count > 0 {
		reaction.Count--
	}
	if self {
		reaction.Me = false
	}
	if reaction.Count == 0 {
		delete(m.Reactions, key)
	}

	return reaction
}

// ClearReactions drops the entire reaction set.
func (m *Message) ClearReactions() {
	m.Reactions = nil
}
