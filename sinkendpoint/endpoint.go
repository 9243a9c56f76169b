// Package sinkendpoint implements spec.md §4.4: any number of sink
// sockets, each independently negotiated and attached to the fan-out.
package sinkendpoint

import (
	"github.com/gorilla/websocket"
	"github.com/relayworks/screencast-relay/fanout"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/media"
	"github.com/relayworks/screencast-relay/peer"
	"github.com/relayworks/screencast-relay/signaling"
)

// Endpoint accepts sink sockets without limit, grounded on the
// teacher's unrestricted "viewer" connection path in webrtc/sfu.go.
type Endpoint struct {
	factory  *media.Factory
	registry *peer.Registry
	fan      *fanout.FanOut
	log      *logx.Logger
}

// New builds a sink endpoint.
func New(factory *media.Factory, registry *peer.Registry, fan *fanout.FanOut, log *logx.Logger) *Endpoint {
	return &Endpoint{factory: factory, registry: registry, fan: fan, log: log}
}

// Accept is the onAccept callback handed to a signaling.Listener. Every
// sink socket gets its own peer connection and is attached to the
// fan-out immediately, which republishes the active track right away
// if one already exists (spec.md §8 scenario 2, "late viewer").
func (e *Endpoint) Accept(sock *signaling.Socket) {
	pc, err := e.factory.NewPeerConnection()
	if err != nil {
		e.log.Errorf("sink endpoint: new peer connection: %v", err)
		sock.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}

	adapter := peer.New(sock, pc, e.registry, e.log, nil)
	e.fan.Attach(adapter)

	go sock.WritePump()
	sock.ReadLoop(func(raw []byte) {
		env, err := signaling.Parse(raw)
		if err != nil {
			e.log.Warnf("sink endpoint: %v", err)
			return
		}
		adapter.HandleEnvelope(env)
	})

	e.fan.Detach(adapter.ID)
	adapter.Close(websocket.CloseNormalClosure, "sink disconnected")
}

// CloseAll tears down every currently attached sink. Called by the
// supervisor before closing the source, per spec.md §4.6's teardown
// order.
func (e *Endpoint) CloseAll() {
	var toClose []*peer.Adapter
	e.registry.Each(func(a *peer.Adapter) {
		if a.Role == signaling.RoleSink {
			toClose = append(toClose, a)
		}
	})
	for _, a := range toClose {
		e.fan.Detach(a.ID)
		a.Close(websocket.CloseGoingAway, "relay shutting down")
	}
}
