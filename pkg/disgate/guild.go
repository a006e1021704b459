package disgate

// Guild is a top-level scope that owns roles and references the tiered
// member, presence, and voice-state caches keyed by its id.
type Guild struct {
	ID          string
	Name        string
	OwnerID     string
	Icon        string
	Region      string
	Large       bool
	Unavailable bool
	// MemberCount is a derived counter kept consistent with roster
	// membership by the member add/remove handlers.
	MemberCount int
	Roles       map[string]*Role
}

// CacheKey returns the repository key for this guild.
func (g *Guild) CacheKey() string { return g.ID }

// GuildPatch is a partial guild payload. Snapshot payloads additionally carry
// nested collections that the dispatch handlers fan out into their own
// repositories and tiers.
type GuildPatch struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Region      *string `json:"region,omitempty"`
	Large       *bool   `json:"large,omitempty"`
	Unavailable *bool   `json:"unavailable,omitempty"`
	MemberCount *int    `json:"member_count,omitempty"`

	Roles       []*RolePatch       `json:"roles,omitempty"`
	Emojis      []*EmojiPatch      `json:"emojis,omitempty"`
	Members     []*MemberPatch     `json:"members,omitempty"`
	Presences   []*PresencePatch   `json:"presences,omitempty"`
	Channels    []*ChannelPatch    `json:"channels,omitempty"`
	VoiceStates []*VoiceStatePatch `json:"voice_states,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch and merges the
// nested role set in place, preserving existing role instances.
func (g *Guild) ApplyPatch(p *GuildPatch) {
	if p == nil {
		return
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.OwnerID != nil {
		g.OwnerID = *p.OwnerID
	}
	if p.Icon != nil {
		g.Icon = *p.Icon
	}
	if p.Region != nil {
		g.Region = *p.Region
	}
	if p.Large != nil {
		g.Large = *p.Large
	}
	if p.Unavailable != nil {
		g.Unavailable = *p.Unavailable
	}
	if p.MemberCount != nil {
		g.MemberCount = *p.MemberCount
	}
	for _, rolePatch := range p.Roles {
		g.ResolveRole(rolePatch)
	}
}

// ResolveRole merges a role patch into the guild-owned role set, creating the
// role on first reference and mutating the existing instance afterwards.
func (g *Guild) ResolveRole(p *RolePatch) *Role {
	if p == nil || p.ID == "" {
		return nil
	}
	if g.Roles == nil {
		g.Roles = make(map[string]*Role)
	}
	role, exists := g.Roles[p.ID]
	if !exists {
		role = &Role{ID: p.ID, GuildID: g.ID}
		g.Roles[p.ID] = role
	}
	role.ApplyPatch(p)

	return role
}

// RemoveRole deletes a role from the guild-owned role set.
func (g *Guild) RemoveRole(roleID string) (*Role, bool) {
	role, exists := g.Roles[roleID]
	if exists {
		delete(g.Roles, roleID)
	}

	return role, exists
}

// Diff returns the field-level changes the patch would apply to before.
// Nested collections are excluded; they merge element-wise.
func (p *GuildPatch) Diff(before *Guild) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.Name != nil && *p.Name != before.Name {
		diff["name"] = FieldChange{Before: before.Name, After: *p.Name}
	}
	if p.OwnerID != nil && *p.OwnerID != before.OwnerID {
		diff["owner_id"] = FieldChange{Before: before.OwnerID, After: *p.OwnerID}
	}
	if p.Icon != nil && *p.Icon != before.Icon {
		diff["icon"] = FieldChange{Before: before.Icon, After: *p.Icon}
	}
	if p.Region != nil && *p.Region != before.Region {
		diff["region"] = FieldChange{Before: before.Region, After: *p.Region}
	}
	if p.Large != nil && *p.Large != before.Large {
		diff["large"] = FieldChange{Before: before.Large, After: *p.Large}
	}
	if p.Unavailable != nil && *p.Unavailable != before.Unavailable {
		diff["unavailable"] = FieldChange{Before: before.Unavailable, After: *p.Unavailable}
	}
	if p.MemberCount != nil && *p.MemberCount != before.MemberCount {
		diff["member_count"] = FieldChange{Before: before.MemberCount, After: *p.MemberCount}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewGuild constructs a guild from its first observed patch.
func NewGuild(p *GuildPatch) *Guild {
	guild := &Guild{ID: p.ID, Roles: make(map[string]*Role)}
	guild.ApplyPatch(p)

	return guild
}

// Role is owned by exactly one guild.
type Role struct {
	ID          string
	GuildID     string
	Name        string
	Color       int
	Position    int
	Permissions int64
	Hoist       bool
	Managed     bool
	Mentionable bool
}

// RolePatch is a partial role payload.
type RolePatch struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Color       *int    `json:"color,omitempty"`
	Position    *int    `json:"position,omitempty"`
	Permissions *int64  `json:"permissions,omitempty"`
	Hoist       *bool   `json:"hoist,omitempty"`
	Managed     *bool   `json:"managed,omitempty"`
	Mentionable *bool   `json:"mentionable,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch.
func (r *Role) ApplyPatch(p *RolePatch) {
	if p == nil {
		return
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Color != nil {
		r.Color = *p.Color
	}
	if p.Position != nil {
		r.Position = *p.Position
	}
	if p.Permissions != nil {
		r.Permissions = *p.Permissions
	}
	if p.Hoist != nil {
		r.Hoist = *p.Hoist
	}
	if p.Managed != nil {
		r.Managed = *p.Managed
	}
	if p.Mentionable != nil {
		r.Mentionable = *p.Mentionable
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *RolePatch) Diff(before *Role) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.Name != nil && *p.Name != before.Name {
		diff["name"] = FieldChange{Before: before.Name, After: *p.Name}
	}
	if p.Color != nil && *p.Color != before.Color {
		diff["color"] = FieldChange{Before: before.Color, After: *p.Color}
	}
	if p.Position != nil && *p.Position != before.Position {
		diff["position"] = FieldChange{Before: before.Position, After: *p.Position}
	}
	if p.Permissions != nil && *p.Permissions != before.Permissions {
		diff["permissions"] = FieldChange{Before: before.Permissions, After: *p.Permissions}
	}
	if p.Hoist != nil && *p.Hoist != before.Hoist {
		diff["hoist"] = FieldChange{Before: before.Hoist, After: *p.Hoist}
	}
	if p.Managed != nil && *p.Managed != before.Managed {
		diff["managed"] = FieldChange{Before: before.Managed, After: *p.Managed}
	}
	if p.Mentionable != nil && *p.Mentionable != before.Mentionable {
		diff["mentionable"] = FieldChange{Before: before.Mentionable, After: *p.Mentionable}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// Emoji is a custom guild emoji. Emojis are stored flat in the emoji
// repository and scoped to their guild by reference.
type Emoji struct {
	ID            string
	GuildID       string
	Name          string
	Animated      bool
	Managed       bool
	RequireColons bool
	Roles         []string
}

// CacheKey returns the repository key for this emoji.
func (e *Emoji) CacheKey() string { return e.ID }

// EmojiPatch is a partial emoji payload.
type EmojiPatch struct {
	ID            string   `json:"id"`
	Name          *string  `json:"name,omitempty"`
	Animated      *bool    `json:"animated,omitempty"`
	Managed       *bool    `json:"managed,omitempty"`
	RequireColons *bool    `json:"require_colons,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch.
func (e *Emoji) ApplyPatch(p *EmojiPatch) {
	if p == nil {
		return
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Animated != nil {
		e.Animated = *p.Animated
	}
	if p.Managed != nil {
		e.Managed = *p.Managed
	}
	if p.RequireColons != nil {
		e.RequireColons = *p.RequireColons
	}
	if p.Roles != nil {
		e.Roles = append([]string(nil), p.Roles...)
	}
}
