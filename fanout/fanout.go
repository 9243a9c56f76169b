// Package fanout implements spec.md §4.5's track fan-out controller:
// one active track, republished onto every registered sink adapter.
package fanout

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/peer"
)

// FanOut owns the single active track and the set of sink adapters it
// is published to. Every mutating operation is serialized onto its own
// worker goroutine, grounded on the teacher's broadcastTrack/
// attachExistingPublishersTo pattern in webrtc/sfu.go, generalized from
// "every peer gets every publisher's track" to "every sink gets the one
// active source track."
type FanOut struct {
	log *logx.Logger

	tasks chan func()
	done  chan struct{}

	activeMu sync.RWMutex
	active   *webrtc.TrackLocalStaticRTP

	source *peer.Adapter
	ssrc   webrtc.SSRC

	sinks map[string]*peer.Adapter
}

// New builds an empty FanOut and starts its worker.
func New(log *logx.Logger) *FanOut {
	f := &FanOut{
		log:   log,
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
		sinks: make(map[string]*peer.Adapter),
	}
	go f.run()
	return f
}

func (f *FanOut) run() {
	defer close(f.done)
	for task := range f.tasks {
		task()
	}
}

// Close drains the worker. Called by the supervisor after every sink
// and the source have already been closed, per spec.md §4.6.
func (f *FanOut) Close() {
	close(f.tasks)
	<-f.done
}

// SetActive installs a new active track, built from the source's
// inbound remote track, and republishes it onto every currently
// attached sink. Safe to call more than once: a later call replaces
// the previous active track on every sink rather than erroring, which
// resolves both spec.md §8 scenario 3 ("source swap") and the source
// renegotiation Open Question from spec.md §9 with the same code path.
func (f *FanOut) SetActive(source *peer.Adapter, remote *webrtc.TrackRemote) {
	local, err := webrtc.NewTrackLocalStaticRTP(remote.Codec().RTPCodecCapability, remote.ID(), remote.StreamID())
	if err != nil {
		f.log.Warnf("fanout: build local track: %v", err)
		return
	}

	reply := make(chan struct{})
	f.tasks <- func() {
		defer close(reply)

		f.activeMu.Lock()
		f.active = local
		f.activeMu.Unlock()
		f.source = source
		f.ssrc = remote.SSRC()

		for id, sink := range f.sinks {
			if err := f.publishTo(sink, local); err != nil {
				f.log.Warnf("fanout: publish to sink %s: %v", id, err)
			}
		}
	}
	<-reply

	f.RequestKeyframe()
	go f.pumpRTP(remote, local)
}

// pumpRTP copies RTP packets from the source's inbound remote track
// onto the shared local track every sink publishes from, grounded on
// the teacher's pumpRTP goroutine in webrtc/sfu.go. Returns once the
// remote track ends (source gone or swapped out) or once this track
// has been superseded by a later SetActive call.
func (f *FanOut) pumpRTP(remote *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}

		f.activeMu.RLock()
		stillActive := f.active == local
		f.activeMu.RUnlock()
		if !stillActive {
			return
		}

		if _, err := local.Write(buf[:n]); err != nil {
			return
		}
	}
}

// Attach registers a sink adapter and, if a track is already active,
// immediately republishes onto it — the late-join behavior of spec.md
// §8 scenario 2, grounded on the teacher's attachExistingPublishersTo.
func (f *FanOut) Attach(sink *peer.Adapter) {
	reply := make(chan struct{})
	f.tasks <- func() {
		defer close(reply)
		f.sinks[sink.ID] = sink

		f.activeMu.RLock()
		active := f.active
		f.activeMu.RUnlock()

		if active != nil {
			if err := f.publishTo(sink, active); err != nil {
				f.log.Warnf("fanout: publish to new sink %s: %v", sink.ID, err)
			}
		}
	}
	<-reply

	f.activeMu.RLock()
	hasActive := f.active != nil
	f.activeMu.RUnlock()
	if hasActive {
		f.RequestKeyframe()
	}
}

// Detach removes a sink adapter from the fan-out set. Called when a
// sink socket closes.
func (f *FanOut) Detach(sinkID string) {
	reply := make(chan struct{})
	f.tasks <- func() {
		defer close(reply)
		delete(f.sinks, sinkID)
	}
	<-reply
}

// RequestKeyframe asks the current source for a fresh keyframe via
// RTCP PLI on the original inbound SSRC. Called on sink attach, since a
// new local track has nothing cached to send a late joiner, per
// SPEC_FULL.md §4.5. Dispatched through the worker since `source`/`ssrc`
// are only ever written there.
func (f *FanOut) RequestKeyframe() {
	reply := make(chan struct{})
	f.tasks <- func() {
		defer close(reply)
		if f.source != nil {
			f.source.SendPLI(f.ssrc)
		}
	}
	<-reply
}

// publishTo adds (or replaces) the sink's sender for the active track.
// Any previous sender is removed first so a source swap never leaves a
// stale RTPSender attached, per spec.md §4.5's "matched sender"
// invariant. If that removal fails, the previous sender stays in place
// and this sink's update is abandoned with an error.
func (f *FanOut) publishTo(sink *peer.Adapter, track *webrtc.TrackLocalStaticRTP) error {
	pc := sink.PeerConnection()

	if prev := sink.SwapSender(nil); prev != nil {
		if err := pc.RemoveTrack(prev); err != nil {
			sink.SwapSender(prev)
			return fmt.Errorf("remove stale sender: %w", err)
		}
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	sink.SwapSender(sender)

	return nil
}
