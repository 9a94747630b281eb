package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barryels/Spark/internal/rpc"
)

// ErrAlreadyRunning is returned by Listen when another daemon answers on the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"cbor"},
	// Only local processes can reach the unix socket.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Listen binds the unix socket and prepares the HTTP server.
// A stale socket file left by a dead daemon is replaced.
func (d *Daemon) Listen() error {
	if err := os.MkdirAll(filepath.Dir(d.socket), 0o700); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	if _, err := os.Stat(d.socket); err == nil {
		conn, err := net.DialTimeout("unix", d.socket, time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("%w on %s", ErrAlreadyRunning, d.socket)
		}
		d.log.Warn("removing stale socket", "socket", d.socket)
		if err := os.Remove(d.socket); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
	}

	ln, err := net.Listen("unix", d.socket)
	if err != nil {
		return fmt.Errorf("daemon: listen: %w", err)
	}
	if err := os.Chmod(d.socket, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("daemon: %w", err)
	}

	d.ln = ln
	d.srv = &http.Server{
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (d *Daemon) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/rpc", d.serveRPC).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (d *Daemon) removeSocket() {
	if err := os.Remove(d.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.log.Warn("remove socket", "socket", d.socket, "error", err)
	}
}

// serveRPC upgrades the connection and runs a session until it ends.
func (d *Daemon) serveRPC(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &session{id: d.ids.Generate(), conn: conn}
	d.sessions.Store(s.id, s)
	d.metrics.sessions.Inc()
	d.log.Info("session opened", "session", s.id)
	defer func() {
		d.sessions.Delete(s.id)
		d.metrics.sessions.Dec()
		s.close()
		d.log.Info("session closed", "session", s.id)
	}()

	d.readLoop(s)
}

// readLoop decodes requests from s until the connection drops.
func (d *Daemon) readLoop(s *session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				d.log.Debug("session read ended", "session", s.id, "error", err)
			}
			return
		}

		req := &rpc.Request{}
		if err := rpc.Unmarshal(data, req); err != nil {
			d.log.Warn("undecodable request", "session", s.id, "error", err)
			s.write(d, rpc.Response[any]{Error: rpc.NewError(rpc.CodeBadRequest, "decode request: %v", err)})
			continue
		}

		// Enqueue here so a session's requests run in the order it sent them.
		if req.ID == "" {
			if !d.submit(ctx, req) {
				d.log.Debug("dropped request after shutdown", "session", s.id, "method", req.Method)
			}
			continue
		}
		c, ok := d.enqueue(ctx, req)
		if !ok {
			s.write(d, rpc.Response[any]{ID: req.ID, Error: rpc.FromError(ErrStopped)})
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.write(d, c.await())
		}()
	}
}

// session is one connected client.
type session struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (s *session) write(d *Daemon, res rpc.Response[any]) {
	data, err := rpc.Marshal(res)
	if err != nil {
		d.log.Error("encode response", "session", s.id, "id", res.ID, "error", err)
		data, _ = rpc.Marshal(rpc.Response[any]{ID: res.ID, Error: rpc.NewError(rpc.CodeInternal, "encode response: %v", err)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		d.log.Debug("write response", "session", s.id, "id", res.ID, "error", err)
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	s.conn.Close()
}
