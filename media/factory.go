// Package media is the process-global MediaFactory of spec.md §3: a
// single webrtc.API plus its own dedicated worker goroutine, shared
// read-only by every peer adapter the relay creates. Every peer
// connection in the process must come from the same Factory instance,
// so cross-peer track sharing (the FanOut) stays consistent.
package media

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/relayworks/screencast-relay/logx"
)

// Config configures the single TURN-only ICE server spec.md §4.2
// mandates: no STUN, one TURN entry with static credentials, TCP
// transport.
type Config struct {
	TURNURL      string
	TURNUsername string
	TURNPassword string
}

// Factory owns the shared webrtc.API and the "dedicated signaling
// worker" spec.md §3 describes: every NewPeerConnection call is
// serialized onto one goroutine so construction never races across
// concurrently accepted sockets.
type Factory struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	tasks chan func()
	done  chan struct{}
}

// NewFactory builds the shared MediaEngine/InterceptorRegistry/API and
// starts the dedicated worker. Returns an error (a spec.md
// "Configuration error") if codec or interceptor registration fails.
func NewFactory(cfg Config, log *logx.Logger) (*Factory, error) {
	m, err := newMediaEngine()
	if err != nil {
		return nil, fmt.Errorf("media: register codecs: %w", err)
	}

	ir, err := newInterceptorRegistry(m)
	if err != nil {
		return nil, fmt.Errorf("media: register interceptors: %w", err)
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: relayLoggerFactory{log: log},
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(settingEngine),
	)

	f := &Factory{
		api: api,
		iceServers: []webrtc.ICEServer{
			{
				URLs:           []string{cfg.TURNURL},
				Username:       cfg.TURNUsername,
				Credential:     cfg.TURNPassword,
				CredentialType: webrtc.ICECredentialTypePassword,
			},
		},
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}

	go f.run()
	return f, nil
}

func (f *Factory) run() {
	defer close(f.done)
	for task := range f.tasks {
		task()
	}
}

// NewPeerConnection creates a peer connection with this relay's fixed
// unified-plan configuration and its single TURN server entry
// (ICETransportPolicyAll, so host candidates are gathered as well),
// dispatched onto the factory's signaling worker. Only construction
// runs here; description, track and candidate calls run on each
// adapter's own worker.
func (f *Factory) NewPeerConnection() (*webrtc.PeerConnection, error) {
	type result struct {
		pc  *webrtc.PeerConnection
		err error
	}
	reply := make(chan result, 1)

	f.tasks <- func() {
		pc, err := f.api.NewPeerConnection(webrtc.Configuration{
			ICEServers:         f.iceServers,
			SDPSemantics:       webrtc.SDPSemanticsUnifiedPlan,
			BundlePolicy:       webrtc.BundlePolicyMaxBundle,
			RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
			ICETransportPolicy: webrtc.ICETransportPolicyAll,
		})
		reply <- result{pc: pc, err: err}
	}

	r := <-reply
	return r.pc, r.err
}

// Close stops accepting new work and waits for the signaling worker to
// drain in-flight tasks, resolving spec.md §9's teardown race: nothing
// that still holds a reference to this factory's API should be able to
// observe it mid-shutdown.
func (f *Factory) Close() {
	close(f.tasks)
	<-f.done
}
