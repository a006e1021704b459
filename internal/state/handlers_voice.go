package state

import (
	"context"
	"encoding/json"
	"fmt"

	"disgate/pkg/disgate"
)

// handleVoiceStateUpdate merges a voice connection under its guild tier, or
// under the channel tier for direct calls. A cleared channel reference means
// the user disconnected, so the state is merged one last time and evicted
// rather than created just to be deleted.
func (e *Engine) handleVoiceStateUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.VoiceStatePatch](disgate.EventVoiceStateUpdate, data)
	if err != nil {
		return err
	}
	if patch.UserID == "" {
		return fmt.Errorf("voice state update payload: missing user id")
	}

	scope := patch.Scope()
	if scope == "" {
		// A leave with neither guild nor channel carries nothing to evict.
		e.emit(ctx, &disgate.Notification{
			Kind:        disgate.KindVoiceStateUpdate,
			Seq:         seq,
			LeftChannel: true,
		})

		return nil
	}

	if patch.Left() {
		state, found := e.store.VoiceStates.Get(scope, patch.UserID)
		if found {
			state.ApplyPatch(patch)
			e.store.VoiceStates.Delete(scope, patch.UserID)
		}
		e.emit(ctx, &disgate.Notification{
			Kind:        disgate.KindVoiceStateUpdate,
			Seq:         seq,
			VoiceState:  state,
			LeftChannel: true,
		})

		return nil
	}

	state, _ := ResolveTier(e.store.VoiceStates, scope, patch.UserID, patch,
		func(p *disgate.VoiceStatePatch) *disgate.VoiceState {
			return disgate.NewVoiceState(scope, p)
		})

	e.emit(ctx, &disgate.Notification{
		Kind:       disgate.KindVoiceStateUpdate,
		Seq:        seq,
		VoiceState: state,
	})

	return nil
}

// handleCallCreate caches a ringing call keyed by its channel.
func (e *Engine) handleCallCreate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.CallPatch](disgate.EventCallCreate, data)
	if err != nil {
		return err
	}
	if patch.ChannelID == "" {
		return fmt.Errorf("call create payload: missing channel id")
	}

	call, _ := Resolve(e.store.Calls, patch.ChannelID, patch, disgate.NewCall)
	channel, _ := e.store.Channels.Get(patch.ChannelID)

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindCallCreate,
		Seq:     seq,
		Channel: channel,
		Call:    call,
	})

	return nil
}

// handleCallUpdate merges call attributes, diffing lazily.
func (e *Engine) handleCallUpdate(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.CallPatch](disgate.EventCallUpdate, data)
	if err != nil {
		return err
	}
	if patch.ChannelID == "" {
		return fmt.Errorf("call update payload: missing channel id")
	}

	var differences disgate.Differences
	if before, found := e.store.Calls.Get(patch.ChannelID); found {
		differences = e.changes.DiffIfObserved(disgate.KindCallUpdate, func() disgate.Differences {
			return patch.Diff(before)
		})
	}
	call, _ := Resolve(e.store.Calls, patch.ChannelID, patch, disgate.NewCall)
	channel, _ := e.store.Channels.Get(patch.ChannelID)

	e.emit(ctx, &disgate.Notification{
		Kind:        disgate.KindCallUpdate,
		Seq:         seq,
		Channel:     channel,
		Call:        call,
		Differences: differences,
	})

	return nil
}

// handleCallDelete evicts a call and marks the returned reference as ended.
func (e *Engine) handleCallDelete(ctx context.Context, seq int64, data json.RawMessage) error {
	patch, err := decode[disgate.CallPatch](disgate.EventCallDelete, data)
	if err != nil {
		return err
	}
	if patch.ChannelID == "" {
		return fmt.Errorf("call delete payload: missing channel id")
	}

	call, found := e.store.Calls.Delete(patch.ChannelID)
	if found {
		call.ApplyPatch(patch)
		call.Ended = true
	}
	channel, _ := e.store.Channels.Get(patch.ChannelID)

	e.emit(ctx, &disgate.Notification{
		Kind:    disgate.KindCallDelete,
		Seq:     seq,
		Channel: channel,
		Call:    call,
	})

	return nil
}
