package state

import (
	"testing"

	"disgate/pkg/disgate"
)

// TestPresenceOfflineEviction covers every combination of the offline
// retention flags: the presence policy decides the presence entry, the
// member policy decides whether the roster record rides along.
func TestPresenceOfflineEviction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		options      []Option
		wantPresence bool
		wantMember   bool
	}{
		{
			name:         "default evicts both",
			wantPresence: false,
			wantMember:   false,
		},
		{
			name:         "retain members",
			options:      []Option{WithOfflineMembers(true)},
			wantPresence: false,
			wantMember:   true,
		},
		{
			name:         "store offline presences",
			options:      []Option{WithOfflinePresences(true)},
			wantPresence: true,
			wantMember:   true,
		},
		{
			name:         "store and retain",
			options:      []Option{WithOfflinePresences(true), WithOfflineMembers(true)},
			wantPresence: true,
			wantMember:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine, emitter := newTestEngine(t, tt.options...)
			dispatch(t, engine, disgate.EventGuildMemberAdd, obj{
				"guild_id": "g1",
				"user":     obj{"id": "u1", "username": "one"},
			}, 1)
			dispatch(t, engine, disgate.EventPresenceUpdate, obj{
				"guild_id": "g1",
				"user":     obj{"id": "u1"},
				"status":   "online",
			}, 2)

			dispatch(t, engine, disgate.EventPresenceUpdate, obj{
				"guild_id": "g1",
				"user":     obj{"id": "u1"},
				"status":   "offline",
			}, 3)

			store := engine.Store()
			if _, found := store.Presences.Get("g1", "u1"); found != tt.wantPresence {
				t.Fatalf("presence cached = %t, want %t", found, tt.wantPresence)
			}
			if _, found := store.Members.Get("g1", "u1"); found != tt.wantMember {
				t.Fatalf("member cached = %t, want %t", found, tt.wantMember)
			}

			// The final merged reference is notified even when evicted.
			notes := emitter.byKind(disgate.KindPresenceUpdate)
			if len(notes) != 2 {
				t.Fatalf("presence notifications = %d, want 2", len(notes))
			}
			offline := notes[1]
			if offline.Presence == nil || offline.Presence.Status != disgate.StatusOffline {
				t.Fatalf("offline notification presence = %+v", offline.Presence)
			}
		})
	}
}

// TestPresenceGlobalScope verifies guild-less presences land under the
// reserved global tier and are flagged as non-guild.
func TestPresenceGlobalScope(t *testing.T) {
	t.Parallel()

	engine, emitter := newTestEngine(t)
	dispatch(t, engine, disgate.EventPresenceUpdate, obj{
		"user":   obj{"id": "u1"},
		"status": "idle",
	}, 1)

	presence, found := engine.Store().Presences.Get(disgate.PresenceScopeGlobal, "u1")
	if !found || presence.Status != disgate.StatusIdle {
		t.Fatalf("global presence = %+v, want idle under the sentinel scope", presence)
	}
	if note := emitter.byKind(disgate.KindPresenceUpdate)[0]; note.IsGuildPresence {
		t.Fatal("global presence flagged as guild presence")
	}
	if engine.Store().Members.HasTier(disgate.PresenceScopeGlobal) {
		t.Fatal("global presence produced a roster stub")
	}
}

// TestPresenceSeedsMemberStub verifies a guild presence carrying roster
// fields seeds a partial member record.
func TestPresenceSeedsMemberStub(t *testing.T) {
	t.Parallel()

	engine, emitter := newTestEngine(t)
	dispatch(t, engine, disgate.EventPresenceUpdate, obj{
		"guild_id": "g1",
		"user":     obj{"id": "u1", "username": "one"},
		"status":   "online",
		"nick":     "nickname",
		"roles":    []string{"r1"},
	}, 1)

	member, found := engine.Store().Members.Get("g1", "u1")
	if !found {
		t.Fatal("guild presence did not seed a member record")
	}
	if member.Nick != "nickname" || len(member.Roles) != 1 {
		t.Fatalf("member stub = %+v, want nick and roles from the presence", member)
	}
	if note := emitter.byKind(disgate.KindPresenceUpdate)[0]; !note.IsGuildPresence {
		t.Fatal("guild presence not flagged as such")
	}
}

// TestPresenceUpdateDiffsLazily verifies status transitions diff only under
// observer interest.
func TestPresenceUpdateDiffsLazily(t *testing.T) {
	t.Parallel()

	engine, emitter := newTestEngine(t)
	emitter.observed[disgate.KindPresenceUpdate] = true
	dispatch(t, engine, disgate.EventPresenceUpdate, obj{
		"guild_id": "g1",
		"user":     obj{"id": "u1"},
		"status":   "online",
	}, 1)
	dispatch(t, engine, disgate.EventPresenceUpdate, obj{
		"guild_id": "g1",
		"user":     obj{"id": "u1"},
		"status":   "dnd",
	}, 2)

	notes := emitter.byKind(disgate.KindPresenceUpdate)
	if notes[0].Differences != nil {
		t.Fatalf("first differences = %v, want nil without prior state", notes[0].Differences)
	}
	change, ok := notes[1].Differences["status"]
	if !ok {
		t.Fatalf("differences = %v, want status change", notes[1].Differences)
	}
	if change.Before != disgate.StatusOnline || change.After != disgate.StatusDoNotDisturb {
		t.Fatalf("status change = %+v, want online -> dnd", change)
	}
}

// TestUserUpdateMergesAndDiffs verifies local identity updates merge in
// place with a lazily computed diff.
func TestUserUpdateMergesAndDiffs(t *testing.T) {
	t.Parallel()

	engine, emitter := newTestEngine(t)
	emitter.observed[disgate.KindUserUpdate] = true
	dispatch(t, engine, disgate.EventUserUpdate, obj{"id": "u1", "username": "old"}, 1)

	before, _ := engine.Store().Users.Get("u1")
	dispatch(t, engine, disgate.EventUserUpdate, obj{"id": "u1", "username": "new"}, 2)
	after, _ := engine.Store().Users.Get("u1")
	if after != before {
		t.Fatal("user update replaced the instance")
	}
	if after.Username != "new" {
		t.Fatalf("username = %q, want merged", after.Username)
	}
	note := emitter.byKind(disgate.KindUserUpdate)[1]
	if change, ok := note.Differences["username"]; !ok || change.After != "new" {
		t.Fatalf("differences = %v, want username change", note.Differences)
	}
}

// TestRelationshipLifecycle verifies relationships cache with their resolved
// user and evict on removal.
func TestRelationshipLifecycle(t *testing.T) {
	t.Parallel()

	engine, emitter := newTestEngine(t)
	dispatch(t, engine, disgate.EventRelationshipAdd, obj{
		"id":   "u2",
		"type": 1,
		"user": obj{"id": "u2", "username": "two"},
	}, 1)

	relationship, found := engine.Store().Relationships.Get("u2")
	if !found || relationship.Type != 1 {
		t.Fatalf("relationship = %+v, want cached as friend", relationship)
	}
	if relationship.User == nil || relationship.User.Username != "two" {
		t.Fatalf("relationship user = %+v, want resolved", relationship.User)
	}
	if global, _ := engine.Store().Users.Get("u2"); global != relationship.User {
		t.Fatal("relationship user is not the globally cached instance")
	}

	dispatch(t, engine, disgate.EventRelationshipRemove, obj{"id": "u2"}, 2)
	if engine.Store().Relationships.Has("u2") {
		t.Fatal("relationship survived removal")
	}
	if notes := emitter.byKind(disgate.KindRelationshipRemove); len(notes) != 1 || notes[0].Relationship != relationship {
		t.Fatal("remove notification does not carry the evicted relationship")
	}
}
