package signaling

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relayworks/screencast-relay/logx"
)

func deadlineNow() time.Time {
	return time.Now().Add(5 * time.Second)
}

// upgrader matches the teacher's websocket.Upgrader (websocket/websocket.go):
// permissive outside production, buffer sizes left at gorilla's common
// defaults for small JSON signaling frames.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		if os.Getenv("RELAY_ENVIRONMENT") != "production" {
			return true
		}
		return r.Header.Get("Origin") != ""
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Listener runs one of spec.md §4.1's two WebSocket endpoints: a fixed
// TCP port upgrading every accepted connection to a Socket of a fixed
// Role, handed to onAccept.
type Listener struct {
	addr     string
	role     Role
	log      *logx.Logger
	server   *http.Server
	onAccept func(*Socket)
}

// NewListener builds (but does not start) one signaling listener.
func NewListener(addr string, role Role, log *logx.Logger, onAccept func(*Socket)) *Listener {
	l := &Listener{addr: addr, role: role, log: log, onAccept: onAccept}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Addr: addr, Handler: mux}
	return l
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warnf("%s listener: upgrade failed: %v", l.role, err)
		return
	}
	sock := newSocket(conn, l.role, l.log)
	l.log.Infof("%s listener: accepted socket %s", l.role, sock.ID)
	l.onAccept(sock)
}

// Serve blocks accepting connections until the listener is shut down.
// Returns http.ErrServerClosed on a clean Shutdown, matching the
// standard library convention errgroup callers filter on.
func (l *Listener) Serve() error {
	return l.server.ListenAndServe()
}

// Shutdown stops accepting new connections and waits for in-flight
// HTTP handshakes to finish, per spec.md §4.6 ("stop accepting new
// connections").
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}
