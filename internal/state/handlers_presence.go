package state

import (
	"context"
	"encoding/json"
	"fmt"

	"disgate/pkg/disgate"
)

// handlePresenceUpdate merges a presence under its guild scope or the global
// sentinel scope, diffing lazily. A guild presence also feeds a minimal
// member stub, so presence observation alone can seed a partial roster
// record. Offline presences are evicted after merge unless retention is
// configured.
func (e *Engine) handlePresenceUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.PresencePatch](disgate.EventPresenceUpdate, data)
	if err != nil {
		return err
	}
	if patch.UserID() == "" {
		return fmt.Errorf("presence update payload: missing user id")
	}

	scope := patch.Scope()
	var differences disgate.Differences
	if before, found := e.store.Presences.Get(scope, patch.UserID()); found {
		differences = e.changes.DiffIfObserved(disgate.KindPresenceUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}

	presence := e.mergePresence(patch)
	user, _ := e.store.Users.Get(patch.UserID())

	e.emit(ctx, &disgate.Notification{
		Kind:            disgate.KindPresenceUpdate,
		Seq:             seq,
		User:            user,
		Presence:        presence,
		IsGuildPresence: scope != disgate.PresenceScopeGlobal,
		Differences:     differences,
	})

	return nil
}

// mergePresence is the shared insertion path for presence payloads from
// presence events, bootstrap snapshots, guild snapshots, and roster chunks.
// It returns the merged entity even when the offline eviction policy removes
// it from the cache immediately afterwards.
func (e *Engine) mergePresence(patch *disgate.PresencePatch) *disgate.Presence {
	if patch == nil || patch.UserID() == "" {
		return nil
	}
	scope := patch.Scope()

	e.resolveUser(patch.User)
	presence, _ := ResolveTier(e.store.Presences, scope, patch.UserID(), patch,
		func(p *disgate.PresencePatch) *disgate.Presence {
			return disgate.NewPresence(scope, p)
		})

	if stub := patch.MemberStub(); stub != nil {
		e.applyMember(patch.GuildID, stub)
	}

	if presence.Status == disgate.StatusOffline && !e.cfg.storeOfflinePresences {
		e.store.Presences.Delete(scope, patch.UserID())
		if scope != disgate.PresenceScopeGlobal && !e.cfg.retainOfflineMembers {
			e.store.Members.Delete(scope, patch.UserID())
		}
	}

	return presence
}

// handleUserUpdate merges the local user's record, diffing lazily.
func (e *Engine) handleUserUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.UserPatch](disgate.EventUserUpdate, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("user update payload: missing id")
	}

	var differences disgate.Differences
	if before, found := e.store.Users.Get(patch.ID); found {
		differences = e.changes.DiffIfObserved(disgate.KindUserUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}
	user, _ := Resolve(e.store.Users, patch.ID, patch, disgate.NewUser)

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindUserUpdate,
		Seq:         seq,
		User:        user,
		Differences: differences,
	})

	return nil
}

// handleRelationshipAdd merges a relationship for the local identity.
func (e *Engine) handleRelationshipAdd(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.RelationshipPatch](disgate.EventRelationshipAdd, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("relationship add payload: missing id")
	}

	relationship := e.applyRelationship(patch)
	e.emit(ctx, &disgate.Notification{
		Kind:         disgate.KindRelationshipAdd,
		Seq:          seq,
		Relationship: relationship,
	})

	return nil
}

// handleRelationshipRemove evicts a relationship.
func (e *Engine) handleRelationshipRemove(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.RelationshipPatch](disgate.EventRelationshipRemove, data)
	if err != nil {
		return err
	}
	if patch.ID == "" {
		return fmt.Errorf("relationship remove payload: missing id")
	}

	relationship, _ := e.store.Relationships.Delete(patch.ID)
	e.emit(ctx, &disgate.Notification{
		Kind:         disgate.KindRelationshipRemove,
		Seq:          seq,
		Relationship: relationship,
	})

	return nil
}
