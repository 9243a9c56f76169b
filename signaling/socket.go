package signaling

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/relayworks/screencast-relay/logx"
)

// Role distinguishes which listener accepted a socket, per spec.md §3:
// "Each socket is either a 'source socket' or a 'sink socket' depending
// on which listener accepted it."
type Role string

const (
	RoleSource Role = "source"
	RoleSink   Role = "sink"
)

const sendQueueSize = 256

// Socket is a full-duplex, message-ordered text channel (spec.md §3's
// SignalingSocket), grounded on the teacher's WebsocketClient
// (websocket/websocket.go) and sfuPeer (webrtc/sfu.go): a buffered
// outbound channel drained by a single writer goroutine, and a
// blocking reader loop owned by the caller.
type Socket struct {
	ID   string
	Role Role

	conn     *websocket.Conn
	send     chan []byte
	log      *logx.Logger
	closeOne sync.Once
}

// newSocket wraps an upgraded connection. IDs are generated with
// google/uuid, already a direct dependency of the teacher's card-game
// code (cards/cards.go, trick.go) for the same kind of entity
// identifier.
func newSocket(conn *websocket.Conn, role Role, log *logx.Logger) *Socket {
	return &Socket{
		ID:   uuid.NewString(),
		Role: role,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		log:  log,
	}
}

// Send enqueues one JSON-encoded text frame. Per spec.md §4.1, sends
// are "one-JSON-per-text-frame"; per spec.md §5 the send is
// synchronous and non-blocking at the adapter boundary, so a full
// queue is a back-pressure, not an error, and the frame is dropped
// with a log line rather than blocking the caller (grounded in the
// teacher's sendJSON in webrtc/sfu.go: "send queue overflow ...
// dropping").
func (s *Socket) Send(env Envelope) error {
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	select {
	case s.send <- raw:
		return nil
	default:
		s.log.Warnf("socket %s: send queue overflow, dropping frame", s.ID)
		return nil
	}
}

// WritePump drains the send queue onto the WebSocket connection. Must
// run on its own goroutine; gorilla/websocket forbids concurrent
// writers on one connection, the same constraint the teacher's
// WritePump/writePumpSFU are built around.
func (s *Socket) WritePump() {
	for msg := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Warnf("socket %s: write error: %v", s.ID, err)
			return
		}
	}
}

// ReadLoop blocks reading frames until the connection closes. Non-text
// frames are rejected with a warning and no side effect (spec.md
// §4.1); text frames are handed to onText. The loop returns when the
// read fails, at which point the caller is responsible for tearing
// down the adapter that owns this socket.
func (s *Socket) ReadLoop(onText func([]byte)) {
	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			s.log.Warnf("socket %s: dropped non-text frame (type=%d)", s.ID, msgType)
			continue
		}
		onText(raw)
	}
}

// Close shuts down the write side with the given WebSocket close code
// and reason, closes the send queue so WritePump's range loop returns,
// and closes the underlying connection. Safe to call more than once.
// Closing send here (rather than leaving it for garbage collection) is
// the half of the teacher's teardown this adapter is grounded on:
// websocket/websocket.go's Hub.Run unregister case and
// webrtc/sfu.go's SfuWebsocketHandler cleanup both close(p.send) on
// disconnect so WritePump always terminates. Callers must not call
// Send after Close; Adapter.Close already drains the adapter's own
// negotiation worker before closing its socket, so no Send can race
// this.
func (s *Socket) Close(code int, reason string) {
	s.closeOne.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			deadlineNow(),
		)
		close(s.send)
		_ = s.conn.Close()
	})
}
