package disgate

// ChannelType discriminates guild channels from direct-message channels.
type ChannelType int

const (
	// ChannelTypeGuildText is a text channel inside a guild.
	ChannelTypeGuildText ChannelType = 0
	// ChannelTypeDM is a one-to-one direct-message channel.
	ChannelTypeDM ChannelType = 1
	// ChannelTypeGuildVoice is a voice channel inside a guild.
	ChannelTypeGuildVoice ChannelType = 2
	// ChannelTypeGroupDM is a multi-recipient direct-message channel.
	ChannelTypeGroupDM ChannelType = 3
)

// Channel belongs to a guild or, for direct messages, carries its own
// recipient set and per-recipient nickname map.
type Channel struct {
	ID            string
	GuildID       string
	Type          ChannelType
	Name          string
	Topic         string
	Position      int
	LastMessageID string
	Recipients    map[string]*User
	Nicks         map[string]string
}

// CacheKey returns the repository key for this channel.
func (c *Channel) CacheKey() string { return c.ID }

// IsDirect reports whether the channel is a direct-message channel.
func (c *Channel) IsDirect() bool {
	return c.Type == ChannelTypeDM || c.Type == ChannelTypeGroupDM
}

// ChannelNick is one per-recipient nickname entry on a direct channel.
type ChannelNick struct {
	ID   string `json:"id"`
	Nick string `json:"nick"`
}

// ChannelPatch is a partial channel payload. Recipient user payloads are
// resolved by the caller against the global user repository.
type ChannelPatch struct {
	ID            string        `json:"id"`
	GuildID       *string       `json:"guild_id,omitempty"`
	Type          *ChannelType  `json:"type,omitempty"`
	Name          *string       `json:"name,omitempty"`
	Topic         *string       `json:"topic,omitempty"`
	Position      *int          `json:"position,omitempty"`
	LastMessageID *string       `json:"last_message_id,omitempty"`
	Recipients    []*UserPatch  `json:"recipients,omitempty"`
	Nicks         []ChannelNick `json:"nicks,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch.
func (c *Channel) ApplyPatch(p *ChannelPatch) {
	if p == nil {
		return
	}
	if p.GuildID != nil {
		c.GuildID = *p.GuildID
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Topic != nil {
		c.Topic = *p.Topic
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.LastMessageID != nil {
		c.LastMessageID = *p.LastMessageID
	}
	for _, nick := range p.Nicks {
		if nick.ID == "" {
			continue
		}
		if c.Nicks == nil {
			c.Nicks = make(map[string]string)
		}
		c.Nicks[nick.ID] = nick.Nick
	}
}

// AddRecipient attaches a resolved user to a direct channel's recipient set.
func (c *Channel) AddRecipient(user *User) {
	if user == nil {
		return
	}
	if c.Recipients == nil {
		c.Recipients = make(map[string]*User)
	}
	c.Recipients[user.ID] = user
}

// RemoveRecipient detaches a recipient and its nickname entry.
func (c *Channel) RemoveRecipient(userID string) {
	delete(c.Recipients, userID)
	delete(c.Nicks, userID)
}

// Diff returns the field-level changes the patch would apply to before.
// Recipient and nickname payloads are excluded; they merge entry-wise.
func (p *ChannelPatch) Diff(before *Channel) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.GuildID != nil && *p.GuildID != before.GuildID {
		diff["guild_id"] = FieldChange{Before: before.GuildID, After: *p.GuildID}
	}
	if p.Type != nil && *p.Type != before.Type {
		diff["type"] = FieldChange{Before: before.Type, After: *p.Type}
	}
	if p.Name != nil && *p.Name != before.Name {
		diff["name"] = FieldChange{Before: before.Name, After: *p.Name}
	}
	if p.Topic != nil && *p.Topic != before.Topic {
		diff["topic"] = FieldChange{Before: before.Topic, After: *p.Topic}
	}
	if p.Position != nil && *p.Position != before.Position {
		diff["position"] = FieldChange{Before: before.Position, After: *p.Position}
	}
	if p.LastMessageID != nil && *p.LastMessageID != before.LastMessageID {
		diff["last_message_id"] = FieldChange{Before: before.LastMessageID, After: *p.LastMessageID}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewChannel constructs a channel from its first observed patch.
func NewChannel(p *ChannelPatch) *Channel {
	channel := &Channel{ID: p.ID}
	channel.ApplyPatch(p)

	return channel
}
