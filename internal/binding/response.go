package binding

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/strandhttp/strand/internal/cookie"
	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
	"github.com/strandhttp/strand/internal/runtimegate"
)

// State is the controller lifecycle state.
type State int32

// Controller states. Open is the only state that accepts writes; the
// rest are terminal. Aborted is reachable from any state.
const (
	StateOpen State = iota
	StateEnded
	StateClosed
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateEnded:
		return "ended"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Drop reasons for deferred operations discarded at execution time.
const (
	dropReasonAborted = "aborted"
	dropReasonGone    = "gone"
)

// Controller is the mutable per-response handle given to application
// code. It may be retained and used from any goroutine: every operation
// that touches native connection state is deferred onto the loop and
// re-checks the abort flag at execution time, so a peer disconnect at
// any moment degrades later operations to silent no-ops.
//
// The native connection is never referenced directly. Deferred
// operations resolve the connection id through the registry when they
// run; once the engine invalidates the connection the resolution
// reports it gone and the operation is dropped.
type Controller struct {
	loop     *engine.Loop
	registry *engine.Registry
	gate     *runtimegate.Gate
	id       uuid.UUID

	// aborted is the single flag shared with the engine's abort
	// delivery. Once set, no queued or future operation may touch the
	// native connection.
	aborted atomic.Bool

	mu         sync.Mutex
	state      State
	status     string
	abortCB    func()
	remoteAddr string

	logger  observability.Logger
	metrics *observability.Metrics
}

// ControllerOption is a functional option for configuring a controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger observability.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithControllerMetrics sets the metrics sink.
func WithControllerMetrics(metrics *observability.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// NewController wraps a native response. It must be called on the loop
// goroutine, while the native handle is known to be valid: the remote
// address is copied out eagerly here so later reads from any goroutine
// never touch the handle, and the abort observer is installed before
// the handle is released to application code.
func NewController(
	loop *engine.Loop,
	registry *engine.Registry,
	gate *runtimegate.Gate,
	res engine.NativeResponse,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		loop:     loop,
		registry: registry,
		gate:     gate,
		status:   "200 OK",
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.id = registry.Add(res)
	c.remoteAddr = res.RemoteAddr()
	res.OnAborted(c.engineAborted)

	return c
}

// engineAborted is the abort observer the engine invokes exactly once,
// on the loop goroutine, when the peer disconnects. It is the sole race
// partner of application code: it flips the shared flag, retires the
// registry entry, and then re-enters the gate for the application's
// abort callback, if any.
func (c *Controller) engineAborted() {
	c.aborted.Store(true)

	c.mu.Lock()
	c.state = StateAborted
	cb := c.abortCB
	c.mu.Unlock()

	c.registry.Remove(c.id)

	if cb != nil {
		c.gate.Do(cb)
	}
}

// WriteStatus sets the response status line, e.g. "404 Not Found".
// It is a no-op unless the controller is still open.
func (c *Controller) WriteStatus(status string) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	c.deferNative(func(res engine.NativeResponse) {
		res.WriteStatus(status)
	})
}

// WriteHeader appends a response header. It is a no-op unless the
// controller is still open.
func (c *Controller) WriteHeader(name, value string) {
	if c.State() != StateOpen {
		return
	}
	c.deferNative(func(res engine.NativeResponse) {
		res.WriteHeader(name, value)
	})
}

// SetCookie serializes the descriptor and appends it as a Set-Cookie
// header. Validation failures are returned synchronously; they signal
// programmer error or an injection attempt and are never masked.
func (c *Controller) SetCookie(d cookie.Descriptor) error {
	serialized, err := cookie.Format(d)
	if err != nil {
		return err
	}
	c.WriteHeader("Set-Cookie", serialized)
	return nil
}

// ClearCookie appends a Set-Cookie header that expires the named
// cookie immediately: empty value, Max-Age=0, and an Expires date in
// the past for peers that ignore Max-Age.
func (c *Controller) ClearCookie(name, path, domain string) error {
	return c.SetCookie(cookie.Descriptor{
		Name:    name,
		Value:   "",
		MaxAge:  -1,
		Expires: time.Unix(0, 0).UTC(),
		Path:    path,
		Domain:  domain,
	})
}

// End writes the body and completes the response. The controller
// transitions to Ended immediately; the native write happens on the
// loop, after which the abort flag is set so that nothing can reach a
// connection the engine may already be reusing.
func (c *Controller) End(body []byte) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateEnded
	c.mu.Unlock()

	c.deferNative(func(res engine.NativeResponse) {
		res.End(body)
		c.aborted.Store(true)
		c.registry.Remove(c.id)
	})
}

// Close terminates the connection without completing the response.
// Like End, it is terminal and conflates into the abort flag.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.deferNative(func(res engine.NativeResponse) {
		res.Close()
		c.aborted.Store(true)
		c.registry.Remove(c.id)
	})
}

// OnData registers the request body observer. Chunks are delivered on
// the loop goroutine; the callback runs under the gate. Registration is
// a no-op once the controller is no longer open.
func (c *Controller) OnData(fn func(chunk []byte, last bool)) {
	if c.State() != StateOpen {
		return
	}
	c.deferNative(func(res engine.NativeResponse) {
		res.OnData(func(chunk []byte, last bool) {
			if c.aborted.Load() {
				return
			}
			c.gate.Do(func() {
				fn(chunk, last)
			})
		})
	})
}

// OnAborted registers a callback to run, under the gate, when the
// engine delivers the abort signal. If the abort was already delivered
// the callback never runs, matching the exactly-once delivery of the
// signal itself.
func (c *Controller) OnAborted(fn func()) {
	c.mu.Lock()
	c.abortCB = fn
	c.mu.Unlock()
}

// RemoteAddr returns the peer address captured at construction. It is
// safe from any goroutine at any time and never touches the native
// handle.
func (c *Controller) RemoteAddr() string {
	return c.remoteAddr
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Aborted reports whether the shared abort flag is set.
func (c *Controller) Aborted() bool {
	return c.aborted.Load()
}

// Status returns the most recently written status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// deferNative queues a native mutation onto the loop. At execution time
// the abort flag is re-checked and the connection id re-resolved; a
// connection that is aborted or gone drops the operation instead of
// running it.
func (c *Controller) deferNative(op func(res engine.NativeResponse)) {
	c.loop.Defer(func() {
		if c.aborted.Load() {
			c.dropped(dropReasonAborted)
			return
		}
		res, ok := c.registry.Resolve(c.id)
		if !ok {
			c.dropped(dropReasonGone)
			return
		}
		op(res)
	})
}

// dropped accounts for a deferred operation discarded at execution
// time.
func (c *Controller) dropped(reason string) {
	if c.metrics != nil {
		c.metrics.OperationDropped(reason)
	}
	c.logger.Debug("deferred operation dropped",
		observability.String("reason", reason),
		observability.Stringer("conn_id", c.id),
	)
}
