package disgate

// User is a global, guild-independent identity.
//
// The self identity shares this type; Email, Verified, and MFAEnabled are only
// populated for the local user.
type User struct {
	ID            string
	Username      string
	Discriminator string
	Avatar        string
	Bot           bool

	Email      string
	Verified   bool
	MFAEnabled bool
}

// CacheKey returns the repository key for this user.
func (u *User) CacheKey() string { return u.ID }

// UserPatch is a partial user payload. Nil fields are absent, not cleared.
type UserPatch struct {
	ID            string  `json:"id"`
	Username      *string `json:"username,omitempty"`
	Discriminator *string `json:"discriminator,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
	Bot           *bool   `json:"bot,omitempty"`
	Email         *string `json:"email,omitempty"`
	Verified      *bool   `json:"verified,omitempty"`
	MFAEnabled    *bool   `json:"mfa_enabled,omitempty"`
}

// Sparse reports whether the patch carries nothing beyond the identity key.
// Presence updates routinely embed id-only user stubs that must not create
// empty user records.
func (p *UserPatch) Sparse() bool {
	return p == nil || (p.Username == nil && p.Discriminator == nil &&
		p.Avatar == nil && p.Bot == nil && p.Email == nil &&
		p.Verified == nil && p.MFAEnabled == nil)
}

// ApplyPatch overwrites only the fields present in the patch.
func (u *User) ApplyPatch(p *UserPatch) {
	if p == nil {
		return
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Discriminator != nil {
		u.Discriminator = *p.Discriminator
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Bot != nil {
		u.Bot = *p.Bot
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Verified != nil {
		u.Verified = *p.Verified
	}
	if p.MFAEnabled != nil {
		u.MFAEnabled = *p.MFAEnabled
	}
}

// Diff returns the field-level changes the patch would apply to before.
func (p *UserPatch) Diff(before *User) Differences {
	if p == nil || before == nil {
		return nil
	}
	diff := Differences{}
	if p.Username != nil && *p.Username != before.Username {
		diff["username"] = FieldChange{Before: before.Username, After: *p.Username}
	}
	if p.Discriminator != nil && *p.Discriminator != before.Discriminator {
		diff["discriminator"] = FieldChange{Before: before.Discriminator, After: *p.Discriminator}
	}
	if p.Avatar != nil && *p.Avatar != before.Avatar {
		diff["avatar"] = FieldChange{Before: before.Avatar, After: *p.Avatar}
	}
	if p.Bot != nil && *p.Bot != before.Bot {
		diff["bot"] = FieldChange{Before: before.Bot, After: *p.Bot}
	}
	if p.Email != nil && *p.Email != before.Email {
		diff["email"] = FieldChange{Before: before.Email, After: *p.Email}
	}
	if p.Verified != nil && *p.Verified != before.Verified {
		diff["verified"] = FieldChange{Before: before.Verified, After: *p.Verified}
	}
	if p.MFAEnabled != nil && *p.MFAEnabled != before.MFAEnabled {
		diff["mfa_enabled"] = FieldChange{Before: before.MFAEnabled, After: *p.MFAEnabled}
	}
	if len(diff) == 0 {
		return nil
	}

	return diff
}

// NewUser constructs a user from its first observed patch.
func NewUser(p *UserPatch) *User {
	user := &User{ID: p.ID}
	user.ApplyPatch(p)

	return user
}

// Relationship links the local identity to another user.
type Relationship struct {
	// ID is the other user's id.
	ID   string
	Type int
	User *User
}

// CacheKey returns the repository key for this relationship.
func (r *Relationship) CacheKey() string { return r.ID }

// RelationshipPatch is a partial relationship payload.
type RelationshipPatch struct {
	ID   string     `json:"id"`
	Type *int       `json:"type,omitempty"`
	User *UserPatch `json:"user,omitempty"`
}

// ApplyPatch overwrites only the fields present in the patch. The embedded
// user payload is resolved by the caller against the global user repository.
func (r *Relationship) ApplyPatch(p *RelationshipPatch) {
	if p == nil {
		return
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
}

// NewRelationship constructs a relationship from its first observed patch.
func NewRelationship(p *RelationshipPatch) *Relationship {
	rel := &Relationship{ID: p.ID}
	rel.ApplyPatch(p)

	return rel
}
