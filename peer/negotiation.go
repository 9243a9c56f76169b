package peer

import (
	"errors"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/relayworks/screencast-relay/signaling"
)

// wireCallbacks registers every pion PeerConnection callback this
// adapter needs, per spec.md §4.2 items 1, 2, 3, 4, 5 and §6's
// connection-state logging requirement. The negotiation-needed,
// local-candidate and ICE-restart paths re-enter through a.post so they
// execute on the adapter's own worker; the logging callbacks and the
// track callback run directly on pion's goroutine.
func (a *Adapter) wireCallbacks() {
	a.pc.OnNegotiationNeeded(func() {
		a.post(a.handleNegotiationNeeded)
	})

	a.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		a.post(func() { a.sendCandidate(init) })
	})

	a.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		a.log.Infof("adapter %s: signaling state -> %s", a.ID, s)
	})

	a.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		a.log.Infof("adapter %s: ice connection state -> %s", a.ID, s)
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateDisconnected {
			a.post(a.restartICE)
		}
	})

	a.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		a.log.Infof("adapter %s: connection state -> %s", a.ID, s)
	})

	a.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		a.log.Infof("adapter %s: unexpected data channel %q opened, ignoring", a.ID, dc.Label())
	})

	if a.onTrack != nil {
		var once sync.Once
		a.pc.OnTrack(func(tr *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
			a.log.Infof("adapter %s: inbound track %s (%s)", a.ID, tr.ID(), tr.Kind())
			once.Do(func() { a.onTrack(tr, recv) })
		})
	}
}

// handleNegotiationNeeded implements spec.md §4.2 item 1: create and
// send a local offer, tracking makingOffer so a concurrently arriving
// remote offer can be recognized as a collision.
func (a *Adapter) handleNegotiationNeeded() {
	a.mu.Lock()
	a.makingOffer = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.makingOffer = false
		a.mu.Unlock()
	}()

	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		a.log.Warnf("adapter %s: create offer: %v", a.ID, err)
		return
	}
	if err := a.pc.SetLocalDescription(offer); err != nil {
		a.log.Warnf("adapter %s: set local description (offer): %v", a.ID, err)
		return
	}
	if err := a.socket.Send(signaling.DescriptionEnvelope(*a.pc.LocalDescription())); err != nil {
		a.log.Warnf("adapter %s: send offer: %v", a.ID, err)
	}
}

// restartICE re-offers with ICERestart set, the supplemented recovery
// path of SPEC_FULL.md §4.2 for a connection that dropped to failed or
// disconnected instead of leaving the viewer stuck.
func (a *Adapter) restartICE() {
	if a.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return
	}
	offer, err := a.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		a.log.Warnf("adapter %s: ice restart offer: %v", a.ID, err)
		return
	}
	if err := a.pc.SetLocalDescription(offer); err != nil {
		a.log.Warnf("adapter %s: ice restart set local description: %v", a.ID, err)
		return
	}
	if err := a.socket.Send(signaling.DescriptionEnvelope(*a.pc.LocalDescription())); err != nil {
		a.log.Warnf("adapter %s: send ice restart offer: %v", a.ID, err)
	}
}

// isOfferCollision is spec.md §4.2 item 2's perfect-negotiation
// collision rule, pulled out as a pure function so it can be checked
// against the full signaling-state matrix without standing up a real
// peer connection: the relay is always impolite, so any incoming offer
// that arrives while it is itself making an offer, or while it is
// anywhere other than stable, collides and must be dropped.
func isOfferCollision(incoming webrtc.SDPType, makingOffer bool, state webrtc.SignalingState) bool {
	return incoming == webrtc.SDPTypeOffer && (makingOffer || state != webrtc.SignalingStateStable)
}

func (a *Adapter) sendCandidate(c webrtc.ICECandidateInit) {
	if err := a.socket.Send(signaling.CandidateEnvelope(c)); err != nil {
		a.log.Warnf("adapter %s: send candidate: %v", a.ID, err)
	}
}

// HandleEnvelope is the entry point from the socket's ReadLoop: it
// dispatches onto the adapter's own worker so every inbound frame is
// serialized against this adapter's own offers and candidate handling.
func (a *Adapter) HandleEnvelope(env signaling.Envelope) {
	a.post(func() {
		switch {
		case env.Description != nil:
			a.handleRemoteDescription(*env.Description)
		case env.Candidate != nil:
			a.handleRemoteCandidate(*env.Candidate)
		}
	})
}

// handleRemoteDescription implements spec.md §4.2 item 2's perfect
// negotiation collision rule. The relay is always impolite: an
// incoming offer that collides with the relay's own in-flight offer, or
// that arrives outside the stable signaling state, is dropped rather
// than rolled back.
func (a *Adapter) handleRemoteDescription(desc webrtc.SessionDescription) {
	a.mu.Lock()
	offerCollision := isOfferCollision(desc.Type, a.makingOffer, a.pc.SignalingState())
	a.ignoreOffer = offerCollision
	a.mu.Unlock()

	if offerCollision {
		a.log.Warnf("adapter %s: dropping colliding remote offer (impolite)", a.ID)
		return
	}

	if err := a.pc.SetRemoteDescription(desc); err != nil {
		a.log.Warnf("adapter %s: set remote description: %v", a.ID, err)
		return
	}

	a.mu.Lock()
	a.remoteSet = true
	queued := a.candQueue
	a.candQueue = nil
	a.mu.Unlock()

	for _, c := range queued {
		if err := a.pc.AddICECandidate(c); err != nil {
			a.log.Warnf("adapter %s: add queued candidate: %v", a.ID, err)
		}
	}

	if desc.Type != webrtc.SDPTypeOffer {
		return
	}

	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		a.log.Warnf("adapter %s: create answer: %v", a.ID, err)
		return
	}
	if err := a.pc.SetLocalDescription(answer); err != nil {
		a.log.Warnf("adapter %s: set local description (answer): %v", a.ID, err)
		return
	}
	if err := a.socket.Send(signaling.DescriptionEnvelope(*a.pc.LocalDescription())); err != nil {
		a.log.Warnf("adapter %s: send answer: %v", a.ID, err)
	}
}

// handleRemoteCandidate implements spec.md §4.2 item 3: candidates
// arriving before the remote description is set are buffered, and a
// candidate rejected while the adapter is ignoring a collided offer is
// silently discarded rather than logged as an error.
func (a *Adapter) handleRemoteCandidate(c webrtc.ICECandidateInit) {
	a.mu.Lock()
	if !a.remoteSet {
		a.candQueue = append(a.candQueue, c)
		a.mu.Unlock()
		return
	}
	ignoring := a.ignoreOffer
	a.mu.Unlock()

	if err := a.pc.AddICECandidate(c); err != nil {
		if ignoring {
			return
		}
		a.log.Warnf("adapter %s: add candidate: %v", a.ID, err)
	}
}

// SendPLI asks the remote end of this adapter's connection for a fresh
// keyframe, used by fanout.FanOut's RequestKeyframe on sink attach so a
// newly joined sink doesn't wait a full GOP to render video
// (SPEC_FULL.md §4.5).
func (a *Adapter) SendPLI(ssrc webrtc.SSRC) {
	err := a.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)}})
	if err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		a.log.Warnf("adapter %s: write PLI: %v", a.ID, err)
	}
}
