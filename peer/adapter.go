package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/signaling"
)

// OnTrack is invoked the first time a remote track arrives on this
// adapter's peer connection. Only the source adapter wires a non-nil
// callback; sink adapters never receive an inbound track, per spec.md
// §4.2 item 5.
type OnTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

// Adapter is one PeerAdapter: a signaling socket paired with one
// webrtc.PeerConnection, negotiated with the relay always impolite.
// Grounded on the teacher's sfuPeer (webrtc/sfu.go), generalized from a
// single hard-coded SFU role into the source/sink split spec.md
// requires.
type Adapter struct {
	ID   string
	Role signaling.Role

	socket *signaling.Socket
	pc     *webrtc.PeerConnection
	log    *logx.Logger

	registry *Registry
	onTrack  OnTrack

	mu          sync.Mutex
	makingOffer bool
	ignoreOffer bool
	remoteSet   bool
	candQueue   []webrtc.ICECandidateInit
	closed      bool

	// currentSender tracks the RTPSender a sink adapter currently uses to
	// publish the active track, so fanout.FanOut can swap it out on
	// source change without leaking the previous sender (spec.md §4.5,
	// grounded on the teacher's attachExistingPublishersTo replaceTrack
	// dance in webrtc/sfu.go).
	currentSender *webrtc.RTPSender

	tasks chan func()
	done  chan struct{}
}

// New builds an adapter around an already-upgraded socket and a fresh
// peer connection from the shared factory, wires every pion callback,
// registers itself, and starts its own negotiation worker. onTrack may
// be nil (sink role never fires it).
func New(sock *signaling.Socket, pc *webrtc.PeerConnection, reg *Registry, log *logx.Logger, onTrack OnTrack) *Adapter {
	a := &Adapter{
		ID:       sock.ID,
		Role:     sock.Role,
		socket:   sock,
		pc:       pc,
		log:      log,
		registry: reg,
		onTrack:  onTrack,
		tasks:    make(chan func(), 64),
		done:     make(chan struct{}),
	}

	a.wireCallbacks()
	reg.Add(a)
	go a.run()
	return a
}

// run is the per-adapter negotiation worker of spec.md §4.2 and §5:
// every signaling-state mutation for this adapter executes on exactly
// one goroutine, so offer/answer/candidate handling never races with
// itself.
func (a *Adapter) run() {
	defer close(a.done)
	for task := range a.tasks {
		task()
	}
}

// post enqueues work onto the adapter's own worker. Safe to call from
// pion's callback goroutines and from the socket's ReadLoop.
func (a *Adapter) post(task func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.tasks <- task:
	default:
		a.log.Warnf("adapter %s: negotiation queue full, dropping task", a.ID)
	}
}

// Socket exposes the underlying signaling socket, used by endpoints to
// start the read/write pumps.
func (a *Adapter) Socket() *signaling.Socket { return a.socket }

// PeerConnection exposes the underlying pion connection, used by
// fanout.FanOut to add/remove tracks on sink adapters.
func (a *Adapter) PeerConnection() *webrtc.PeerConnection { return a.pc }

// Close tears the adapter down: stops the worker, closes the peer
// connection, removes itself from the registry so no later callback or
// lookup can observe it again (spec.md §9's teardown-safety
// requirement), and closes the signaling socket with the given code.
func (a *Adapter) Close(code int, reason string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.registry.Remove(a.ID)
	close(a.tasks)
	<-a.done

	if err := a.pc.Close(); err != nil {
		a.log.Warnf("adapter %s: peer connection close: %v", a.ID, err)
	}
	a.socket.Close(code, reason)
}

// IsClosed reports whether Close has already run, so late-arriving
// pion callbacks can discard themselves instead of touching torn-down
// state.
func (a *Adapter) IsClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// SwapSender atomically replaces the sink's current publishing sender
// and returns the previous one (nil if none), so fanout.FanOut can
// remove a stale sender before adding its replacement without a
// separate lock of its own.
func (a *Adapter) SwapSender(next *webrtc.RTPSender) *webrtc.RTPSender {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.currentSender
	a.currentSender = next
	return prev
}
