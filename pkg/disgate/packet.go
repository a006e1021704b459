package disgate

import "encoding/json"

// OpCode classifies a gateway packet.
type OpCode int

const (
	// OpDispatch carries one named event payload. Only dispatch packets are
	// routed by the state engine; every other class belongs to the transport.
	OpDispatch OpCode = 0
	// OpHeartbeat requests or carries a keepalive beat.
	OpHeartbeat OpCode = 1
	// OpIdentify opens a new session.
	OpIdentify OpCode = 2
	// OpPresenceUpdate publishes the local presence.
	OpPresenceUpdate OpCode = 3
	// OpVoiceStateUpdate publishes the local voice state.
	OpVoiceStateUpdate OpCode = 4
	// OpResume resumes a prior session.
	OpResume OpCode = 6
	// OpReconnect instructs the client to reconnect.
	OpReconnect OpCode = 7
	// OpRequestGuildMembers requests a full roster stream for one guild.
	OpRequestGuildMembers OpCode = 8
	// OpInvalidSession invalidates the current session.
	OpInvalidSession OpCode = 9
	// OpHello announces heartbeat parameters after connect.
	OpHello OpCode = 10
	// OpHeartbeatACK acknowledges a heartbeat.
	OpHeartbeatACK OpCode = 11
)

// Packet is the wire envelope delivered by the transport collaborator.
type Packet struct {
	// Op classifies the packet.
	Op OpCode `json:"op"`
	// Seq is the session sequence number for dispatch packets.
	Seq int64 `json:"s,omitempty"`
	// Event names the event carried by dispatch packets.
	Event string `json:"t,omitempty"`
	// Data is the undecoded event payload.
	Data json.RawMessage `json:"d,omitempty"`
}

// Gateway event names routed by the dispatch table.
const (
	EventReady                    = "READY"
	EventResumed                  = "RESUMED"
	EventGuildCreate              = "GUILD_CREATE"
	EventGuildUpdate              = "GUILD_UPDATE"
	EventGuildDelete              = "GUILD_DELETE"
	EventGuildBanAdd              = "GUILD_BAN_ADD"
	EventGuildBanRemove           = "GUILD_BAN_REMOVE"
	EventGuildEmojisUpdate        = "GUILD_EMOJIS_UPDATE"
	EventGuildMemberAdd           = "GUILD_MEMBER_ADD"
	EventGuildMemberUpdate        = "GUILD_MEMBER_UPDATE"
	EventGuildMemberRemove        = "GUILD_MEMBER_REMOVE"
	EventGuildMembersChunk        = "GUILD_MEMBERS_CHUNK"
	EventGuildRoleCreate          = "GUILD_ROLE_CREATE"
	EventGuildRoleUpdate          = "GUILD_ROLE_UPDATE"
	EventGuildRoleDelete          = "GUILD_ROLE_DELETE"
	EventChannelCreate            = "CHANNEL_CREATE"
	EventChannelUpdate            = "CHANNEL_UPDATE"
	EventChannelDelete            = "CHANNEL_DELETE"
	EventChannelRecipientAdd      = "CHANNEL_RECIPIENT_ADD"
	EventChannelRecipientRemove   = "CHANNEL_RECIPIENT_REMOVE"
	EventMessageCreate            = "MESSAGE_CREATE"
	EventMessageUpdate            = "MESSAGE_UPDATE"
	EventMessageDelete            = "MESSAGE_DELETE"
	EventMessageDeleteBulk        = "MESSAGE_DELETE_BULK"
	EventMessageReactionAdd       = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove    = "MESSAGE_REACTION_REMOVE"
	EventMessageReactionRemoveAll = "MESSAGE_REACTION_REMOVE_ALL"
	EventPresenceUpdate           = "PRESENCE_UPDATE"
	EventTypingStart              = "TYPING_START"
	EventUserUpdate               = "USER_UPDATE"
	EventVoiceStateUpdate         = "VOICE_STATE_UPDATE"
	EventCallCreate               = "CALL_CREATE"
	EventCallUpdate               = "CALL_UPDATE"
	EventCallDelete               = "CALL_DELETE"
	EventRelationshipAdd          = "RELATIONSHIP_ADD"
	EventRelationshipRemove       = "RELATIONSHIP_REMOVE"
)
