package disgate

// VoiceState is a user's voice connection within one guild, or within a
// direct call channel when no guild applies.
type VoiceState struct {
	GuildID   string
	ChannelID string
	UserID    string
	SessionID string
	Deaf      bool
	Mute      bool
	SelfDeaf  bool
	SelfMute  bool
	Suppress  bool
}

// CacheKey returns the voice-tier key for this state.
func (v *VoiceState) CacheKey() string { return v.UserID }

// VoiceStatePatch is a partial voice-state payload. The gateway always
// includes channel_id on voice updates; a nil ChannelID therefore means the
// user left their channel, not an absent field.
type VoiceStatePatch struct {
	GuildID   string  `json:"guild_id,omitempty"`
	ChannelID *string `json:"channel_id"`
	UserID    string  `json:"user_id"`
	SessionID *string `json:"session_id,omitempty"`
	Deaf      *bool   `json:"deaf,omitempty"`
	Mute      *bool   `json:"mute,omitempty"`
	SelfDeaf  *bool   `json:"self_deaf,omitempty"`
	SelfMute  *bool   `json:"self_mute,omitempty"`
	Suppress  *bool   `json:"suppress,omitempty"`
}

// Scope returns the voice-tier key the patch belongs under: the guild id,
// falling back to the channel id for direct calls.
func (p *VoiceStatePatch) Scope() string {
	if p.GuildID != "" {
		return p.GuildID
	}
	if p.ChannelID != nil {
		return *p.ChannelID
	}

	return ""
}

// Left reports whether the patch clears the channel reference.
func (p *VoiceStatePatch) Left() bool {
	return p.ChannelID == nil || *p.ChannelID == ""
}

// ApplyPatch overwrites only the fields present in the patch.
func (v *VoiceState) ApplyPatch(p *VoiceStatePatch) {
	if p == nil {
		return
	}
	if p.ChannelID != nil {
		v.ChannelID = *p.ChannelID
	}
	if p.SessionID != nil {
		v.SessionID = *p.SessionID
	}
	if p.Deaf != nil {
		v.Deaf = *p.Deaf
	}
	if p.Mute != nil {
		v.Mute = *p.Mute
	}
	if p.SelfDeaf != nil {
		v.SelfDeaf = *p.SelfDeaf
	}
	if p.SelfMute != nil {
		v.SelfMute = *p.SelfMute
	}
	if p.Suppress != nil {
		v.Suppress = *p.Suppress
	}
}

// NewVoiceState constructs a voice state from its first observed patch.
func NewVoiceState(scope string, p *VoiceStatePatch) *VoiceState {
	state := &VoiceState{GuildID: p.GuildID, UserID: p.UserID}
	if p.GuildID == "" {
		state.GuildID = scope
	}
	state.ApplyPatch(p)

	return state
}

// Call is a ringing or ongoing direct call, keyed by its channel.
type Call struct {
	ChannelID    string
	MessageID    string
	Region       string
	Participants []string
	Ringing      []string
	Unavailable  bool
	// Ended marks the terminal killed state set when the call is deleted.
	Ended bool
}

// CacheKey returns the repository key for this call.
func (c *Call) CacheKey() string { return c.ChannelID }

// CallPatch is a partial call payload.
type CallPatch struct {
	ChannelID    string   `json:"channel_id"`
	MessageID    *string  `json:"message_id,omitempty"`
	Region       *string  `json:"region,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Ringing      []string `json:"ringing,omitempty"`
	Unavailable  *bool    `json:"unavailable,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch.
func (c *Call) ApplyPatch(p *CallPatch) {
	if p == nil {
		return
	}
	if p.MessageID != nil {
		c.MessageID = *p.MessageID
	}
	if p.Region != nil {
		c.Region = *p.Region
	}
	if p.Participants != nil {
		c.Participants = append([]string(nil), p.Participants...)
	}
	if p.Ringing != nil {
		c.Ringing = append([]string(nil), p.Ringing...)
	}
	if p.Unavailable != nil {
		c.Unavailable = *p.Unavailable
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *CallPatch) Diff(before *Call) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.MessageID != nil && *p.MessageID != before.MessageID {
		diff["message_id"] = FieldChange{Before: before.MessageID, After: *p.MessageID}
	}
	if p.Region != nil && *p.Region != before.Region {
		diff["region"] = FieldChange{Before: before.Region, After: *p.Region}
	}
	if p.Participants != nil && !equalStrings(p.Participants, before.Participants) {
		diff["participants"] = FieldChange{Before: append([]string(nil), before.Participants...), After: append([]string(nil), p.Participants...)}
	}
	if p.Ringing != nil && !equalStrings(p.Ringing, before.Ringing) {
		diff["ringing"] = FieldChange{Before: append([]string(nil), before.Ringing...), After: append([]string(nil), p.Ringing...)}
	}
	if p.Unavailable != nil && *p.Unavailable != before.Unavailable {
		diff["unavailable"] = FieldChange{Before: before.Unavailable, After: *p.Unavailable}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewCall constructs a call from its first observed patch.
func NewCall(p *CallPatch) *Call {
	call := &Call{ChannelID: p.ChannelID}
	call.ApplyPatch(p)

	return call
}
