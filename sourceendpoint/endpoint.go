// Package sourceendpoint implements spec.md §4.3's source admission
// rule: exactly one active source socket at a time.
package sourceendpoint

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/relayworks/screencast-relay/fanout"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/media"
	"github.com/relayworks/screencast-relay/peer"
	"github.com/relayworks/screencast-relay/signaling"
)

// Endpoint accepts source sockets and admits at most one at a time,
// grounded on the teacher's single hard-coded "broadcaster" role check
// in webrtc/sfu.go, generalized into an explicit admission gate.
type Endpoint struct {
	factory  *media.Factory
	registry *peer.Registry
	fan      *fanout.FanOut
	log      *logx.Logger

	mu        sync.Mutex
	current   *peer.Adapter
	admitting bool
}

// New builds a source endpoint. The registry passed in is used only
// for bookkeeping consistency with sinkendpoint; admission is enforced
// by Endpoint.current, not the registry's size, since a single source
// socket may itself hold more than a moment to reject a duplicate.
func New(factory *media.Factory, registry *peer.Registry, fan *fanout.FanOut, log *logx.Logger) *Endpoint {
	return &Endpoint{factory: factory, registry: registry, fan: fan, log: log}
}

// Accept is the onAccept callback handed to a signaling.Listener. It
// enforces spec.md §4.3: if a source is already active, the new socket
// is closed immediately with CloseGoingAway and never gets a peer
// connection. The admit-or-reject decision is made and reserved under
// e.mu in one step, before any of the slow WebRTC construction work
// below runs, so two source sockets arriving concurrently can never
// both be admitted (signaling.Listener.handle dispatches each accepted
// connection on its own goroutine, so this is reachable in practice).
func (e *Endpoint) Accept(sock *signaling.Socket) {
	if !e.reserve() {
		e.log.Warnf("source endpoint: rejecting duplicate source socket %s", sock.ID)
		sock.Close(websocket.CloseGoingAway, "source already connected")
		return
	}

	pc, err := e.factory.NewPeerConnection()
	if err != nil {
		e.log.Errorf("source endpoint: new peer connection: %v", err)
		e.abortReservation()
		sock.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		e.log.Errorf("source endpoint: add recvonly transceiver: %v", err)
		_ = pc.Close()
		e.abortReservation()
		sock.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}

	var adapter *peer.Adapter
	adapter = peer.New(sock, pc, e.registry, e.log, func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.fan.SetActive(adapter, tr)
	})

	e.commitReservation(adapter)

	go sock.WritePump()
	sock.ReadLoop(func(raw []byte) {
		env, err := signaling.Parse(raw)
		if err != nil {
			e.log.Warnf("source endpoint: %v", err)
			return
		}
		adapter.HandleEnvelope(env)
	})

	e.release(adapter)
}

// reserve claims the single source slot if it is free, atomically with
// the "is one already active" check. admitting guards the window
// between claiming the slot and Accept building the real adapter
// (commitReservation), so a second concurrent Accept sees the slot as
// taken even before e.current is set.
func (e *Endpoint) reserve() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil || e.admitting {
		return false
	}
	e.admitting = true
	return true
}

// abortReservation releases a reservation made by reserve() when the
// admit attempt fails before an adapter exists to install.
func (e *Endpoint) abortReservation() {
	e.mu.Lock()
	e.admitting = false
	e.mu.Unlock()
}

// commitReservation installs the newly built adapter as the current
// source and clears the in-progress flag in the same critical section.
func (e *Endpoint) commitReservation(adapter *peer.Adapter) {
	e.mu.Lock()
	e.current = adapter
	e.admitting = false
	e.mu.Unlock()
}

// release tears the adapter down and clears it as the current source if
// it still is one, run after ReadLoop returns (socket closed by the
// remote end or by a read error).
func (e *Endpoint) release(adapter *peer.Adapter) {
	e.mu.Lock()
	if e.current == adapter {
		e.current = nil
	}
	e.mu.Unlock()

	adapter.Close(websocket.CloseNormalClosure, "source disconnected")
}

// Close tears down the active source, if any. Called by the supervisor
// during shutdown after every sink has already been closed, per
// spec.md §4.6.
func (e *Endpoint) Close() {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()

	if cur != nil {
		cur.Close(websocket.CloseGoingAway, "relay shutting down")
	}
}
