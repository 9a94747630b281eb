package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/rpc"
)

// DefaultTimeout bounds each call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures Dial.
type Options struct {
	// Socket is the daemon's unix socket path.
	Socket string
	// Timeout bounds each call; negative disables it.
	Timeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a connection to the daemon.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *slog.Logger
	server  rpc.VersionResult

	// writeMu serializes websocket writes.
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan rpc.Response[cbor.RawMessage]

	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the daemon and checks its protocol version.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", opts.Socket)
		},
		HandshakeTimeout: 5 * time.Second,
		Subprotocols:     []string{"cbor"},
	}
	conn, resp, err := dialer.DialContext(ctx, "ws://spark/rpc", nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + opts.Socket, Err: err}
	}

	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		log:     opts.Logger,
		pending: make(map[string]chan rpc.Response[cbor.RawMessage]),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()

	var v rpc.VersionResult
	if err := c.call(ctx, rpc.MethodVersion, nil, &v); err != nil {
		c.Close()
		return nil, err
	}
	if v.Protocol != ir.ProtocolVersion {
		c.Close()
		return nil, &VersionMismatchError{Client: ir.ProtocolVersion, Server: v.Protocol}
	}
	c.server = v
	c.log.Debug("connected to daemon", "socket", opts.Socket, "app", v.App)
	return c, nil
}

// Server returns what the daemon reported during the handshake.
func (c *Client) Server() rpc.VersionResult { return c.server }

// Version asks the daemon for its protocol version.
func (c *Client) Version(ctx context.Context) (uint32, error) {
	var v rpc.VersionResult
	if err := c.call(ctx, rpc.MethodVersion, nil, &v); err != nil {
		return 0, err
	}
	return v.Protocol, nil
}

// Library returns a handle to the shared library.
func (c *Client) Library(ctx context.Context) (*RemoteLibrary, error) {
	var info rpc.LibraryInfo
	if err := c.call(ctx, rpc.MethodLibrary, nil, &info); err != nil {
		return nil, err
	}
	return &RemoteLibrary{c: c, info: info}, nil
}

// Shutdown asks the daemon to stop. It returns once the request is written;
// the daemon may still be running.
func (c *Client) Shutdown(ctx context.Context) error {
	req, err := rpc.NewRequest("", rpc.MethodShutdown, nil)
	if err != nil {
		return err
	}
	return c.write(ctx, req)
}

// Close closes the connection. Calls in flight fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closeErr = ErrClosed
		close(c.closeCh)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// closeWithError marks the connection dead after a transport failure.
func (c *Client) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *Client) write(ctx context.Context, req *rpc.Request) error {
	data, err := rpc.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.Method, err)
	}

	select {
	case <-c.closeCh:
		return c.closeErr
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		werr := &ConnectionError{Op: "write " + string(req.Method), Err: err}
		if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
			c.closeWithError(werr)
		}
		return werr
	}
	return nil
}

// call sends method and decodes the result into out (if non-nil).
func (c *Client) call(ctx context.Context, method rpc.Method, params, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := uuid.Must(uuid.NewV7()).String()
	req, err := rpc.NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan rpc.Response[cbor.RawMessage], 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(ctx, req); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return &ConnectionError{Op: string(method), Err: ctx.Err()}
	case <-c.closeCh:
		return c.closeErr
	case res := <-ch:
		if res.Error != nil {
			return res.Error.Err()
		}
		if out != nil && res.Result != nil {
			if err := rpc.Unmarshal(*res.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// readLoop delivers responses to waiting calls until the connection drops.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.log.Debug("daemon connection lost", "error", err)
				c.closeWithError(&ConnectionError{Op: "read", Err: err})
			}
			return
		}

		var res rpc.Response[cbor.RawMessage]
		if err := rpc.Unmarshal(data, &res); err != nil {
			c.log.Error("undecodable response", "error", err)
			continue
		}
		if res.ID == "" {
			if res.Error != nil {
				c.log.Error("daemon error without request id", "error", res.Error)
			}
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[res.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.log.Warn("response for unknown request", "id", res.ID)
			continue
		}
		ch <- res
	}
}
