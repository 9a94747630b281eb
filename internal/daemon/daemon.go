package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/rpc"
)

// ErrStopped is returned for calls submitted after shutdown began.
var ErrStopped = errors.New("daemon stopped")

// DefaultShutdownTimeout bounds how long Run waits for the HTTP server to
// drain after the loop stops.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures a Daemon.
type Options struct {
	// Library is the shared library. It should already be loaded.
	Library *library.Library
	// Socket is the unix socket path to listen on.
	Socket string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// CacheSize bounds the binding cache; zero means DefaultCacheSize.
	CacheSize int
	// IDs names sessions; defaults to UUIDv7Generator.
	IDs IDGenerator
	// Registry receives the daemon metrics; defaults to a fresh registry.
	Registry *prometheus.Registry
}

// Daemon serves the shared library to clients.
//
// Thread-safety model:
//   - Call(), TriggersForApplication(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - The library is only touched by the Run loop once Run has started
type Daemon struct {
	lib      *library.Library
	log      *slog.Logger
	socket   string
	ids      IDGenerator
	queue    *callQueue
	handlers map[rpc.Method]handler
	cache    *bindingCache
	metrics  *metrics
	registry *prometheus.Registry
	sessions *xsync.MapOf[string, *session]

	ln        net.Listener
	srv       *http.Server
	closeOnce sync.Once
}

// New creates a Daemon. No socket is opened until Listen or Run.
func New(opts Options) (*Daemon, error) {
	if opts.Library == nil {
		return nil, errors.New("daemon: library is required")
	}
	if opts.Socket == "" {
		return nil, errors.New("daemon: socket path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	m := newMetrics(opts.Registry)
	cache, err := newBindingCache(opts.CacheSize, m)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	d := &Daemon{
		lib:      opts.Library,
		log:      opts.Logger,
		socket:   opts.Socket,
		ids:      opts.IDs,
		queue:    newCallQueue(),
		cache:    cache,
		metrics:  m,
		registry: opts.Registry,
		sessions: xsync.NewMapOf[string, *session](),
	}
	d.handlers = d.newHandlers()
	m.entries.Set(float64(d.lib.Count()))
	return d, nil
}

// Socket returns the unix socket path the daemon listens on.
func (d *Daemon) Socket() string { return d.socket }

// Run serves requests until ctx is cancelled or a shutdown request arrives.
// Calls Listen first if it has not been called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Every library access
// happens in this goroutine.
func (d *Daemon) Run(ctx context.Context) error {
	if d.ln == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}

	d.log.Info("daemon starting", "socket", d.socket, "library", d.lib.Path(), "entries", d.lib.Count())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.srv.Serve(d.ln)
	}()

	loopErr := d.loop(ctx)
	d.teardown()

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("daemon: serve: %w", err)
	}
	if errors.Is(loopErr, context.Canceled) {
		return nil
	}
	return loopErr
}

// loop is the single-writer control loop.
func (d *Daemon) loop(ctx context.Context) error {
	for {
		c, ok := d.queue.TryDequeue()
		if ok {
			d.process(c)
			continue
		}

		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping: context cancelled")
			d.queue.Close()
			d.drain()
			return ctx.Err()

		case <-d.queue.Wait():
			// The signal channel closes when the queue is closed.
			if d.queue.Len() == 0 && d.queue.Closed() {
				d.log.Info("daemon stopping: shutdown requested")
				return nil
			}
		}
	}
}

// drain answers calls left in a closed queue.
func (d *Daemon) drain() {
	for {
		c, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		if c.done != nil {
			c.done <- rpc.Response[any]{ID: c.req.ID, Error: rpc.FromError(ErrStopped)}
		}
	}
}

// teardown stops the HTTP server and closes every session.
func (d *Daemon) teardown() {
	d.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := d.srv.Shutdown(ctx); err != nil {
			d.log.Warn("http shutdown", "error", err)
		}
		// Hijacked websocket connections are not closed by Shutdown.
		d.sessions.Range(func(id string, s *session) bool {
			s.close()
			return true
		})
		d.removeSocket()
		d.log.Info("daemon stopped")
	})
}

// Stop requests shutdown. It does not wait for Run to return.
func (d *Daemon) Stop() {
	d.queue.Close()
}

// process runs one call. Called only from the Run loop.
func (d *Daemon) process(c *call) {
	start := time.Now()
	res := d.handle(c.req)

	code := "OK"
	if res.Error != nil {
		code = string(res.Error.Code)
	}
	d.metrics.requests.WithLabelValues(string(c.req.Method), code).Inc()
	d.metrics.duration.WithLabelValues(string(c.req.Method)).Observe(time.Since(start).Seconds())
	d.metrics.entries.Set(float64(d.lib.Count()))

	if c.done != nil {
		c.done <- res
	}
}

// handle executes req against the library and builds its response.
// A successful mutation is synchronized before the response is built; if
// that fails the change stays in memory and the caller gets SAVE_ERROR.
func (d *Daemon) handle(req *rpc.Request) rpc.Response[any] {
	res := rpc.Response[any]{ID: req.ID}

	h, ok := d.handlers[req.Method]
	if !ok {
		res.Error = rpc.NewError(rpc.CodeUnknownMethod, "unknown method %q", req.Method)
		return res
	}

	result, err := h(req)
	if err == nil && req.Method.Mutates() {
		d.cache.Purge()
		err = d.persist(req.Method)
	}
	if err != nil {
		d.log.Debug("request failed", "method", req.Method, "id", req.ID, "error", err)
		res.Error = rpc.FromError(err)
		return res
	}
	if result != nil {
		res.Result = &result
	}
	return res
}

// persist synchronizes the library after a mutation.
// An in-memory library (no path) has nothing to persist.
func (d *Daemon) persist(method rpc.Method) error {
	if d.lib.Path() == "" {
		return nil
	}
	if err := d.lib.Synchronize(); err != nil {
		d.metrics.saveErrors.Inc()
		d.log.Error("synchronize after mutation failed", "method", method, "error", err)
		return err
	}
	return nil
}

// Call submits req to the control loop and waits for its response.
func (d *Daemon) Call(ctx context.Context, req *rpc.Request) rpc.Response[any] {
	c, ok := d.enqueue(ctx, req)
	if !ok {
		return rpc.Response[any]{ID: req.ID, Error: rpc.FromError(ErrStopped)}
	}
	return c.await()
}

// enqueue places req on the control loop's queue and returns the call to
// await. Calls run in the order they are enqueued.
func (d *Daemon) enqueue(ctx context.Context, req *rpc.Request) (*call, bool) {
	c := &call{ctx: ctx, req: req, done: make(chan rpc.Response[any], 1)}
	return c, d.queue.Enqueue(c)
}

// await blocks until the control loop answers c or its context ends.
func (c *call) await() rpc.Response[any] {
	select {
	case res := <-c.done:
		return res
	case <-c.ctx.Done():
		return rpc.Response[any]{ID: c.req.ID, Error: rpc.NewError(rpc.CodeInternal, "%v", c.ctx.Err())}
	}
}

// submit enqueues req without waiting for a response.
func (d *Daemon) submit(ctx context.Context, req *rpc.Request) bool {
	return d.queue.Enqueue(&call{ctx: ctx, req: req})
}

// TriggersForApplication resolves what fires for app through the control
// loop and the binding cache. This is the dispatch query.
func (d *Daemon) TriggersForApplication(ctx context.Context, app ir.ApplicationID) (map[ir.TriggerID]ir.ActionID, error) {
	req, err := rpc.NewRequest("", rpc.MethodTriggersForApplication, rpc.ApplicationParams{Application: app})
	if err != nil {
		return nil, err
	}
	res := d.Call(ctx, req)
	if res.Error != nil {
		return nil, res.Error.Err()
	}
	b, ok := (*res.Result).(rpc.BindingsResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", *res.Result)
	}
	return maps.Clone(b.Bindings), nil
}
