// Package transport maintains the gateway websocket connection: handshake,
// heartbeat keepalive, and the ordered read loop that feeds the state engine.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"disgate/pkg/disgate"
)

const (
	defaultDialTimeout      = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// PacketSink consumes decoded gateway packets in delivery order. The state
// engine implements it.
type PacketSink interface {
	HandlePacket(ctx context.Context, packet *disgate.Packet)
}

// socketConfig contains runtime controls for timeouts and observability.
type socketConfig struct {
	dialTimeout        time.Duration
	writeTimeout       time.Duration
	handshakeTimeout   time.Duration
	largeThreshold     int
	guildSubscriptions bool
	logger             *slog.Logger
	onAsyncError       func(context.Context, string, error)
}

// SocketOption mutates socket configuration.
type SocketOption func(*socketConfig)

// WithDialTimeout configures the websocket dial deadline.
func WithDialTimeout(timeout time.Duration) SocketOption {
	return func(cfg *socketConfig) {
		if timeout > 0 {
			cfg.dialTimeout = timeout
		}
	}
}

// WithWriteTimeout configures the per-write deadline.
func WithWriteTimeout(timeout time.Duration) SocketOption {
	return func(cfg *socketConfig) {
		if timeout > 0 {
			cfg.writeTimeout = timeout
		}
	}
}

// WithLargeThreshold configures the member-count ceiling above which the
// gateway omits full rosters from guild snapshots.
func WithLargeThreshold(threshold int) SocketOption {
	return func(cfg *socketConfig) {
		if threshold > 0 {
			cfg.largeThreshold = threshold
		}
	}
}

// WithGuildSubscriptions configures whether the session subscribes to
// per-guild presence and typing streams.
func WithGuildSubscriptions(enabled bool) SocketOption {
	return func(cfg *socketConfig) {
		cfg.guildSubscriptions = enabled
	}
}

// WithSocketLogger configures structured logging for connection lifecycle.
func WithSocketLogger(logger *slog.Logger) SocketOption {
	return func(cfg *socketConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithSocketErrorSink configures the async error callback for heartbeat and
// write failures that happen off the read loop.
func WithSocketErrorSink(sink func(context.Context, string, error)) SocketOption {
	return func(cfg *socketConfig) {
		if sink != nil {
			cfg.onAsyncError = sink
		}
	}
}

// Socket is a single gateway websocket session. It performs the hello and
// identify handshake, keeps the heartbeat alive, and delivers every dispatch
// packet to the sink on one goroutine so cache mutations stay ordered.
type Socket struct {
	cfg        socketConfig
	gatewayURL string
	token      string
	sink       PacketSink

	writeMu sync.Mutex
	conn    *websocket.Conn

	seqMu   sync.Mutex
	lastSeq int64
}

// NewSocket creates an unconnected gateway socket.
func NewSocket(gatewayURL, token string, sink PacketSink, options ...SocketOption) (*Socket, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("new gateway socket: empty gateway url")
	}
	if token == "" {
		return nil, fmt.Errorf("new gateway socket: empty token")
	}
	if sink == nil {
		return nil, fmt.Errorf("new gateway socket: nil sink")
	}

	cfg := socketConfig{
		dialTimeout:        defaultDialTimeout,
		writeTimeout:       defaultWriteTimeout,
		handshakeTimeout:   defaultHandshakeTimeout,
		largeThreshold:     250,
		guildSubscriptions: true,
		logger:             slog.Default(),
		onAsyncError:       func(context.Context, string, error) {},
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Socket{
		cfg:        cfg,
		gatewayURL: gatewayURL,
		token:      token,
		sink:       sink,
	}, nil
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token              string             `json:"token"`
	Properties         identifyProperties `json:"properties"`
	Compress           bool               `json:"compress"`
	LargeThreshold     int                `json:"large_threshold"`
	GuildSubscriptions bool               `json:"guild_subscriptions"`
}

// Run connects, identifies, and pumps packets into the sink until the
// context is canceled or the connection fails. It owns the connection for
// its whole lifetime; callers reconnect by calling Run again.
func (s *Socket) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, s.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial %s: %w", s.gatewayURL, err)
	}
	defer conn.Close()

	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()

	interval, err := s.handshake(conn)
	if err != nil {
		return fmt.Errorf("gateway handshake: %w", err)
	}
	s.cfg.logger.Info("gateway session identified",
		slog.String("url", s.gatewayURL),
		slog.Duration("heartbeat_interval", interval),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A blocked read only returns on connection teardown, so cancellation
	// has to close the socket out from under it.
	go func() {
		<-runCtx.Done()
		conn.Close()
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		s.runHeartbeat(runCtx, interval)
	}()

	err = s.readLoop(runCtx, conn)
	cancel()
	<-heartbeatDone

	if ctx.Err() != nil {
		return nil
	}

	return err
}

// handshake consumes the hello packet and answers with identify.
func (s *Socket) handshake(conn *websocket.Conn) (time.Duration, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.handshakeTimeout)); err != nil {
		return 0, fmt.Errorf("set hello deadline: %w", err)
	}
	packet, err := readPacket(conn)
	if err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if packet.Op != disgate.OpHello {
		return 0, fmt.Errorf("expected hello, got op %d", packet.Op)
	}
	var hello helloData
	if err := json.Unmarshal(packet.Data, &hello); err != nil {
		return 0, fmt.Errorf("decode hello: %w", err)
	}
	if hello.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("hello without heartbeat interval")
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return 0, fmt.Errorf("clear hello deadline: %w", err)
	}

	identify := identifyData{
		Token: s.token,
		Properties: identifyProperties{
			OS:      runtime.GOOS,
			Browser: "disgate",
			Device:  "disgate",
		},
		LargeThreshold:     s.cfg.largeThreshold,
		GuildSubscriptions: s.cfg.guildSubscriptions,
	}
	if err := s.writePacket(disgate.OpIdentify, identify); err != nil {
		return 0, fmt.Errorf("send identify: %w", err)
	}

	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

// readLoop decodes packets and feeds them to the sink in arrival order.
func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		packet, err := readPacket(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("gateway read: %w", err)
		}

		switch packet.Op {
		case disgate.OpHeartbeat:
			if err := s.sendHeartbeat(); err != nil {
				s.cfg.onAsyncError(ctx, "gateway heartbeat", err)
			}
		case disgate.OpHeartbeatACK:
			// keepalive acknowledged, nothing to update
		case disgate.OpReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case disgate.OpInvalidSession:
			return fmt.Errorf("gateway invalidated session")
		case disgate.OpDispatch:
			s.seqMu.Lock()
			if packet.Seq > s.lastSeq {
				s.lastSeq = packet.Seq
			}
			s.seqMu.Unlock()
			s.sink.HandlePacket(ctx, packet)
		default:
			s.cfg.logger.Debug("gateway packet ignored", slog.Int("op", int(packet.Op)))
		}
	}
}

// runHeartbeat sends keepalive beats until ctx is canceled.
func (s *Socket) runHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(); err != nil {
				s.cfg.onAsyncError(ctx, "gateway heartbeat", err)
				return
			}
		}
	}
}

type memberRequestData struct {
	GuildID   string `json:"guild_id"`
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	Presences bool   `json:"presences,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

// RequestGuildMembers issues one full-roster fetch over the socket. It is a
// plain frame write; chunk responses arrive through the ordinary read loop.
func (s *Socket) RequestGuildMembers(ctx context.Context, req disgate.MemberFetchRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("request guild members %s: %w", req.GuildID, err)
	}
	if req.GuildID == "" {
		return fmt.Errorf("request guild members: empty guild id")
	}

	payload := memberRequestData{
		GuildID:   req.GuildID,
		Query:     req.Query,
		Limit:     req.Limit,
		Presences: req.Presences,
		Nonce:     req.Nonce,
	}
	if err := s.writePacket(disgate.OpRequestGuildMembers, payload); err != nil {
		return fmt.Errorf("request guild members %s: %w", req.GuildID, err)
	}

	return nil
}

// sendHeartbeat writes one keepalive beat carrying the last dispatch sequence.
func (s *Socket) sendHeartbeat() error {
	s.seqMu.Lock()
	seq := s.lastSeq
	s.seqMu.Unlock()

	return s.writePacket(disgate.OpHeartbeat, seq)
}

// writePacket serializes one outbound frame. Writes are mutex-serialized
// because the heartbeat goroutine and request calls share the connection.
func (s *Socket) writePacket(op disgate.OpCode, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode op %d: %w", op, err)
	}
	frame, err := json.Marshal(&disgate.Packet{Op: op, Data: encoded})
	if err != nil {
		return fmt.Errorf("encode packet op %d: %w", op, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("write op %d: socket not connected", op)
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout)); err != nil {
		return fmt.Errorf("write op %d: %w", op, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write op %d: %w", op, err)
	}

	return nil
}

// readPacket decodes one inbound frame into the shared packet envelope.
func readPacket(conn *websocket.Conn) (*disgate.Packet, error) {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	packet := &disgate.Packet{}
	if err := json.Unmarshal(message, packet); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}

	return packet, nil
}
