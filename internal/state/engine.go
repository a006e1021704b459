package state

import (
	"context"

	"github.com/google/uuid"

	"disgate/pkg/disgate"
)

// Emitter is the outward notification surface the engine publishes to. The
// notification bus implements it; tests substitute a capture stub.
type Emitter interface {
	ObserverSource
	// Publish delivers one notification to all interested observers.
	Publish(ctx context.Context, note *disgate.Notification) error
}

// Engine is the client-side state-synchronization core: it turns the ordered
// gateway event stream into cache mutations and normalized notifications.
//
// All cache mutations happen on the single thread of control that calls
// HandlePacket; no handler begins before the previous one finishes.
type Engine struct {
	cfg     config
	store   *Store
	router  *PacketRouter
	changes *ChangeNotifier
	chunks  *MemberChunkCoordinator

	emitter   Emitter
	requester disgate.Requester
}

// New creates a state engine. requester may be nil, which disables outbound
// roster fetches and enrichment.
func New(requester disgate.Requester, emitter Emitter, options ...Option) *Engine {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	engine := &Engine{
		cfg:       cfg,
		store:     NewStore(cfg.messageLimit),
		changes:   NewChangeNotifier(emitter),
		emitter:   emitter,
		requester: requester,
	}
	engine.chunks = NewMemberChunkCoordinator(
		requester,
		cfg.loadAllMembers && cfg.guildSubscriptions,
		cfg.largeGuildThreshold,
		cfg.onAsyncError,
		func(ctx context.Context, err error) {
			engine.emit(ctx, &disgate.Notification{
				Kind: disgate.KindWarning,
				Err:  err,
			})
		},
	)
	engine.router = newPacketRouter(&cfg, engine.dispatchTable(), engine.emit)

	return engine
}

// HandlePacket processes one transport packet in delivery order.
func (e *Engine) HandlePacket(ctx context.Context, packet *disgate.Packet) {
	e.router.Handle(ctx, packet)
}

// Store exposes the entity caches for consumer reads. Returned entities may
// be mutated by later packets at any time.
func (e *Engine) Store() *Store {
	return e.store
}

// dispatchTable binds every routed gateway event to its handler. Adding an
// event kind means adding exactly one entry here.
func (e *Engine) dispatchTable() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		disgate.EventReady:                    e.handleReady,
		disgate.EventResumed:                  e.handleResumed,
		disgate.EventGuildCreate:              e.handleGuildCreate,
		disgate.EventGuildUpdate:              e.handleGuildUpdate,
		disgate.EventGuildDelete:              e.handleGuildDelete,
		disgate.EventGuildBanAdd:              e.handleGuildBanAdd,
		disgate.EventGuildBanRemove:           e.handleGuildBanRemove,
		disgate.EventGuildEmojisUpdate:        e.handleGuildEmojisUpdate,
		disgate.EventGuildMemberAdd:           e.handleGuildMemberAdd,
		disgate.EventGuildMemberUpdate:        e.handleGuildMemberUpdate,
		disgate.EventGuildMemberRemove:        e.handleGuildMemberRemove,
		disgate.EventGuildMembersChunk:        e.handleGuildMembersChunk,
		disgate.EventGuildRoleCreate:          e.handleGuildRoleCreate,
		disgate.EventGuildRoleUpdate:          e.handleGuildRoleUpdate,
		disgate.EventGuildRoleDelete:          e.handleGuildRoleDelete,
		disgate.EventChannelCreate:            e.handleChannelCreate,
		disgate.EventChannelUpdate:            e.handleChannelUpdate,
		disgate.EventChannelDelete:            e.handleChannelDelete,
		disgate.EventChannelRecipientAdd:      e.handleChannelRecipientAdd,
		disgate.EventChannelRecipientRemove:   e.handleChannelRecipientRemove,
		disgate.EventMessageCreate:            e.handleMessageCreate,
		disgate.EventMessageUpdate:            e.handleMessageUpdate,
		disgate.EventMessageDelete:            e.handleMessageDelete,
		disgate.EventMessageDeleteBulk:        e.handleMessageDeleteBulk,
		disgate.EventMessageReactionAdd:       e.handleMessageReactionAdd,
		disgate.EventMessageReactionRemove:    e.handleMessageReactionRemove,
		disgate.EventMessageReactionRemoveAll: e.handleMessageReactionRemoveAll,
		disgate.EventPresenceUpdate:           e.handlePresenceUpdate,
		disgate.EventTypingStart:              e.handleTypingStart,
		disgate.EventUserUpdate:               e.handleUserUpdate,
		disgate.EventVoiceStateUpdate:         e.handleVoiceStateUpdate,
		disgate.EventCallCreate:               e.handleCallCreate,
		disgate.EventCallUpdate:               e.handleCallUpdate,
		disgate.EventCallDelete:               e.handleCallDelete,
		disgate.EventRelationshipAdd:          e.handleRelationshipAdd,
		disgate.EventRelationshipRemove:       e.handleRelationshipRemove,
	}
}

// emit publishes one notification, stamping a session-local id. Publish
// failures are backpressure conditions, downgraded to the async error sink.
func (e *Engine) emit(ctx context.Context, note *disgate.Notification) {
	if e.emitter == nil || note == nil {
		return
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if err := e.emitter.Publish(ctx, note); err != nil {
		e.cfg.onAsyncError(ctx, "emit "+string(note.Kind), err)
	}
}

// resolveUser merges a user payload into the global user repository. Sparse
// id-only stubs merge into existing records but never create empty ones.
func (e *Engine) resolveUser(patch *disgate.UserPatch) *disgate.User {
	if patch == nil || patch.ID == "" {
		return nil
	}
	if existing, found := e.store.Users.Get(patch.ID); found {
		existing.ApplyPatch(patch)
		return existing
	}
	if patch.Sparse() {
		return nil
	}
	user, _ := Resolve(e.store.Users, patch.ID, patch, disgate.NewUser)

	return user
}
