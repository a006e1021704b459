package state

import (
	"context"
	"encoding/json"
	"strings"

	"disgate/pkg/disgate"
)

// HandlerFunc processes one dispatch payload on the dispatch thread of
// control.
type HandlerFunc func(ctx context.Context, seq int64, data json.RawMessage) error

// PacketRouter consumes the ordered packet stream from the transport, filters
// to dispatch-class packets, and routes them by event name.
//
// Packets are processed strictly in delivery order; that total order is the
// only consistency mechanism the caches rely on.
type PacketRouter struct {
	handlers map[string]HandlerFunc
	disabled map[string]struct{}
	emitRaw  bool

	emit         func(ctx context.Context, note *disgate.Notification)
	metrics      *Metrics
	onAsyncError func(ctx context.Context, scope string, err error)
}

// newPacketRouter wires the router from resolved engine configuration.
func newPacketRouter(
	cfg *config,
	handlers map[string]HandlerFunc,
	emit func(ctx context.Context, note *disgate.Notification),
) *PacketRouter {
	return &PacketRouter{
		handlers:     handlers,
		disabled:     cfg.disabledEvents,
		emitRaw:      cfg.emitRawEvents,
		emit:         emit,
		metrics:      cfg.metrics,
		onAsyncError: cfg.onAsyncError,
	}
}

// Handle routes one packet. Control-class packets are ignored silently; a
// handler failure is surfaced through the async error sink and a warning
// notification, never as a returned error or panic.
func (r *PacketRouter) Handle(ctx context.Context, packet *disgate.Packet) {
	if packet == nil || packet.Op != disgate.OpDispatch || packet.Event == "" {
		return
	}

	if r.emitRaw {
		r.emit(ctx, &disgate.Notification{
			Kind: disgate.KindRaw,
			Seq:  packet.Seq,
			Raw:  &disgate.RawEvent{Name: packet.Event, Data: packet.Data},
		})
	}

	if _, denied := r.disabled[strings.ToUpper(packet.Event)]; denied {
		r.metrics.ObserveDenied()
		return
	}

	handler, known := r.handlers[packet.Event]
	if !known {
		r.metrics.ObserveUnknown()
		r.emit(ctx, &disgate.Notification{
			Kind: disgate.KindUnknown,
			Seq:  packet.Seq,
			Raw:  &disgate.RawEvent{Name: packet.Event, Data: packet.Data},
		})
		r.emit(ctx, &disgate.Notification{
			Kind: disgate.Kind(strings.ToLower(packet.Event)),
			Seq:  packet.Seq,
			Raw:  &disgate.RawEvent{Name: packet.Event, Data: packet.Data},
		})
		return
	}

	r.metrics.ObserveDispatched(packet.Event)

	err := runSafely("dispatch "+packet.Event, func() error {
		return handler(ctx, packet.Seq, packet.Data)
	})
	if err == nil {
		return
	}

	r.metrics.ObserveHandlerFailure()
	if r.onAsyncError != nil {
		r.onAsyncError(ctx, "dispatch", err)
	}
	r.emit(ctx, &disgate.Notification{
		Kind: disgate.KindWarning,
		Seq:  packet.Seq,
		Err:  err,
	})
}
