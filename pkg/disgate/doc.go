// Package disgate defines the public types of the gateway state engine:
// entity records and their partial-update patches, the packet envelope
// delivered by the transport, the normalized notification envelope delivered
// to consumers, and the collaborator contracts the engine depends on.
//
// Entities returned by the engine's store are live references. The dispatch
// loop mutates them in place as later gateway events arrive, so consumers
// must not assume point-in-time immutability of retrieved entities.
package disgate
