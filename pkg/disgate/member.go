package disgate

import "time"

// Member wraps a global user reference with guild-local attributes. Members
// only exist inside a guild's roster tier; there is no global member store.
type Member struct {
	GuildID  string
	UserID   string
	User     *User
	Nick     string
	Roles    []string
	JoinedAt time.Time
	Deaf     bool
	Mute     bool
}

// CacheKey returns the roster-tier key for this member. The guild id is the
// tier key, so member identity stays guild-qualified.
func (m *Member) CacheKey() string { return m.UserID }

// MemberPatch is a partial roster payload. The embedded user payload is
// resolved by the caller against the global user repository.
type MemberPatch struct {
	GuildID  string     `json:"guild_id,omitempty"`
	User     *UserPatch `json:"user,omitempty"`
	Nick     *string    `json:"nick,omitempty"`
	Roles    []string   `json:"roles,omitempty"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
	Deaf     *bool      `json:"deaf,omitempty"`
	Mute     *bool      `json:"mute,omitempty"`
}

// UserID returns the member's user identity from the embedded user payload.
func (p *MemberPatch) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}

	return p.User.ID
}

// ApplyPatch overwrites only the fields present in the patch.
func (m *Member) ApplyPatch(p *MemberPatch) {
	if p == nil {
		return
	}
	if p.Nick != nil {
		m.Nick = *p.Nick
	}
	if p.Roles != nil {
		m.Roles = append([]string(nil), p.Roles...)
	}
	if p.JoinedAt != nil {
		m.JoinedAt = *p.JoinedAt
	}
	if p.Deaf != nil {
		m.Deaf = *p.Deaf
	}
	if p.Mute != nil {
		m.Mute = *p.Mute
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *MemberPatch) Diff(before *Member) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.Nick != nil && *p.Nick != before.Nick {
		diff["nick"] = FieldChange{Before: before.Nick, After: *p.Nick}
	}
	if p.Roles != nil && !equalStrings(p.Roles, before.Roles) {
		diff["roles"] = FieldChange{Before: append([]string(nil), before.Roles...), After: append([]string(nil), p.Roles...)}
	}
	if p.JoinedAt != nil && !p.JoinedAt.Equal(before.JoinedAt) {
		diff["joined_at"] = FieldChange{Before: before.JoinedAt, After: *p.JoinedAt}
	}
	if p.Deaf != nil && *p.Deaf != before.Deaf {
		diff["deaf"] = FieldChange{Before: before.Deaf, After: *p.Deaf}
	}
	if p.Mute != nil && *p.Mute != before.Mute {
		diff["mute"] = FieldChange{Before: before.Mute, After: *p.Mute}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewMember constructs a roster member from its first observed patch.
func NewMember(guildID string, p *MemberPatch) *Member {
	member := &Member{GuildID: guildID, UserID: p.UserID()}
	member.ApplyPatch(p)

	return member
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}

	return true
}

func equalActivities(a, b []Activity) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}

	return true
}

// PresenceScopeGlobal is the reserved tier key for presences that are not
// tied to any guild. Global and guild presences share one tiered cache.
const PresenceScopeGlobal = "global"

// PresenceStatus is a user's availability state.
type PresenceStatus string

const (
	// StatusOnline marks an active user.
	StatusOnline PresenceStatus = "online"
	// StatusIdle marks an inactive user.
	StatusIdle PresenceStatus = "idle"
	// StatusDoNotDisturb marks a user suppressing notifications.
	StatusDoNotDisturb PresenceStatus = "dnd"
	// StatusOffline marks a disconnected user. Offline presences are evicted
	// unless the presence cache retains them by configuration.
	StatusOffline PresenceStatus = "offline"
)

// Activity is a single rich-presence activity entry.
type Activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Presence is a user's status within one guild scope, or globally under
// PresenceScopeGlobal for direct presences.
type Presence struct {
	GuildID    string
	UserID     string
	Status     PresenceStatus
	Activities []Activity
}

// CacheKey returns the presence-tier key for this presence.
func (p *Presence) CacheKey() string { return p.UserID }

// PresencePatch is a partial presence payload. Guild presences may embed
// roster fields (nick, roles), making presence observation a valid sole
// source of a partial member record.
type PresencePatch struct {
	User       *UserPatch      `json:"user,omitempty"`
	GuildID    string          `json:"guild_id,omitempty"`
	Status     *PresenceStatus `json:"status,omitempty"`
	Activities []Activity      `json:"activities,omitempty"`
	Nick       *string         `json:"nick,omitempty"`
	Roles      []string        `json:"roles,omitempty"`
}

// UserID returns the presence's user identity from the embedded user payload.
func (p *PresencePatch) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}

	return p.User.ID
}

// Scope returns the presence-tier key the patch belongs under.
func (p *PresencePatch) Scope() string {
	if p == nil || p.GuildID == "" {
		return PresenceScopeGlobal
	}

	return p.GuildID
}

// ApplyPatch overwrites only the fields present in the patch.
func (pr *Presence) ApplyPatch(p *PresencePatch) {
	if p == nil {
		return
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
	if p.Activities != nil {
		pr.Activities = append([]Activity(nil), p.Activities...)
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *PresencePatch) Diff(before *Presence) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.Status != nil && *p.Status != before.Status {
		diff["status"] = FieldChange{Before: before.Status, After: *p.Status}
	}
	if p.Activities != nil && !equalActivities(p.Activities, before.Activities) {
		diff["activities"] = FieldChange{Before: append([]Activity(nil), before.Activities...), After: append([]Activity(nil), p.Activities...)}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// MemberStub projects the roster fields embedded in a guild presence into a
// member patch.
func (p *PresencePatch) MemberStub() *MemberPatch {
	if p == nil || p.GuildID == "" || p.UserID() == "" {
		return nil
	}

	return &MemberPatch{
		GuildID: p.GuildID,
		User:    p.User,
		Nick:    p.Nick,
		Roles:   p.Roles,
	}
}

// NewPresence constructs a presence from its first observed patch under the
// given tier scope.
func NewPresence(scope string, p *PresencePatch) *Presence {
	presence := &Presence{GuildID: scope, UserID: p.UserID()}
	presence.ApplyPatch(p)

	return presence
}

// TypingIndicator marks a user typing in a channel. Entries are superseded
// by later events or pruned by the owner; no gateway event deletes them.
type TypingIndicator struct {
	ChannelID string
	GuildID   string
	UserID    string
	StartedAt time.Time
}

// CacheKey returns the typing-tier key for this indicator.
func (t *TypingIndicator) CacheKey() string { return t.UserID }
