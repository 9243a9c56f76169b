// Package supervisor wires every component of the relay together and
// owns its startup and shutdown sequence, per spec.md §4.6.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relayworks/screencast-relay/config"
	"github.com/relayworks/screencast-relay/fanout"
	"github.com/relayworks/screencast-relay/logx"
	"github.com/relayworks/screencast-relay/media"
	"github.com/relayworks/screencast-relay/peer"
	"github.com/relayworks/screencast-relay/signaling"
	"github.com/relayworks/screencast-relay/sinkendpoint"
	"github.com/relayworks/screencast-relay/sourceendpoint"
)

// shutdownGrace bounds how long the HTTP listeners wait for in-flight
// WebSocket handshakes to finish before the ordered teardown continues
// regardless.
const shutdownGrace = 5 * time.Second

// errExitRequested is returned by watchStdin when the console "exit"
// line arrives. errgroup.WithContext only cancels its derived context
// when a Go func returns a non-nil error, so this sentinel is how the
// stdin path triggers the same shutdown a signal does; Run filters it
// back out of the final error.
var errExitRequested = errors.New("supervisor: exit requested from console")

// Supervisor owns the process-wide wiring: one MediaFactory, one
// FanOut, one Registry, a source endpoint, a sink endpoint, and the two
// signaling listeners, run under an errgroup so any fatal failure on
// one tears down the rest. Grounded on the teacher's main.go/servo
// command wiring pattern (cmd/servo), generalized from a single
// goroutine-per-feature main into an explicit Supervisor type per
// spec.md §9's dependency-injection design note.
type Supervisor struct {
	cfg config.Config
	log *logx.Logger

	factory  *media.Factory
	registry *peer.Registry
	fan      *fanout.FanOut

	sourceEP *sourceendpoint.Endpoint
	sinkEP   *sinkendpoint.Endpoint

	sourceListener *signaling.Listener
	sinkListener   *signaling.Listener
}

// New builds and wires every component. The returned Supervisor owns
// the media factory and must be closed via Run's shutdown path.
func New(cfg config.Config, log *logx.Logger) (*Supervisor, error) {
	factory, err := media.NewFactory(media.Config{
		TURNURL:      cfg.TURNURL(),
		TURNUsername: cfg.TURNUser,
		TURNPassword: cfg.TURNPass,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("supervisor: build media factory: %w", err)
	}

	registry := peer.NewRegistry()
	fan := fanout.New(log)

	sourceEP := sourceendpoint.New(factory, registry, fan, log)
	sinkEP := sinkendpoint.New(factory, registry, fan, log)

	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		factory:  factory,
		registry: registry,
		fan:      fan,
		sourceEP: sourceEP,
		sinkEP:   sinkEP,
	}

	s.sourceListener = signaling.NewListener(cfg.SourceAddr, signaling.RoleSource, log, sourceEP.Accept)
	s.sinkListener = signaling.NewListener(cfg.SinkAddr, signaling.RoleSink, log, sinkEP.Accept)

	return s, nil
}

// Run starts both listeners and blocks until shutdown is triggered by
// SIGINT, SIGTERM, or an "exit" line on stdin (grounded on the
// teacher's cmd/servo main loop, which reads a shutdown line from
// stdin the same way). Performs the ordered teardown of spec.md §4.6:
// stop accepting connections, close every sink, close the source, then
// drain the media factory.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Infof("supervisor: source listener on %s", s.cfg.SourceAddr)
		if err := s.sourceListener.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("source listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.log.Infof("supervisor: sink listener on %s", s.cfg.SinkAddr)
		if err := s.sinkListener.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sink listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.watchStdin(gctx)
	})

	<-gctx.Done()
	s.shutdown()

	if err := g.Wait(); err != nil && !errors.Is(err, errExitRequested) {
		return err
	}
	return nil
}

// watchStdin lets an operator type "exit" at the relay's console to
// trigger a clean shutdown without sending a signal, matching the
// teacher's cmd/servo console loop. Returns errExitRequested so the
// errgroup's derived context actually gets canceled; a nil return
// would leave Run's <-gctx.Done() waiting on a signal forever.
func (s *Supervisor) watchStdin(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "exit" {
				s.log.Infof("supervisor: exit requested from console")
				return errExitRequested
			}
		}
	}
}

// shutdown runs the ordered teardown of spec.md §4.6.
func (s *Supervisor) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.sourceListener.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("supervisor: source listener shutdown: %v", err)
	}
	if err := s.sinkListener.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("supervisor: sink listener shutdown: %v", err)
	}

	s.sinkEP.CloseAll()
	s.sourceEP.Close()
	s.fan.Close()
	s.factory.Close()
}
