package strand

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/config"
	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
)

// appRequest and appResponse are minimal engine fakes for exercising
// registered routes without a listener.
type appRequest struct {
	method string
	url    string
	params []string
}

func (r *appRequest) Method() string                              { return r.method }
func (r *appRequest) URL() string                                 { return r.url }
func (r *appRequest) Query() string                               { return "" }
func (r *appRequest) ForEachHeader(func(name, value string) bool) {}
func (r *appRequest) Context() context.Context                    { return context.Background() }

func (r *appRequest) Parameter(index int) string {
	if index < 0 || index >= len(r.params) {
		return ""
	}
	return r.params[index]
}

type appResponse struct {
	mu     sync.Mutex
	status string
	body   []byte
	ended  bool
}

func (r *appResponse) WriteStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *appResponse) WriteHeader(name, value string) {}

func (r *appResponse) End(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = body
	r.ended = true
}

func (r *appResponse) Close()                                  {}
func (r *appResponse) OnData(func(chunk []byte, last bool))    {}
func (r *appResponse) OnAborted(func())                        {}
func (r *appResponse) RemoteAddr() string                      { return "203.0.113.1:1000" }

func (r *appResponse) result() (string, []byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.body, r.ended
}

// startAppLoop runs the app's loop for the duration of the test and
// returns a dispatcher that invokes a route the way the engine would.
func startAppLoop(t *testing.T, app *App) func(method, path string, res engine.NativeResponse) bool {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return func(method, path string, res engine.NativeResponse) bool {
		handler, params, _, ok := app.mux.LookupHTTP(method, path)
		if !ok {
			return false
		}

		req := &appRequest{method: method, url: path, params: params}
		ran := make(chan struct{})
		app.loop.Defer(func() {
			defer close(ran)
			handler(res, req)
		})
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch did not run")
		}

		// One more round through the queue flushes the deferred writes.
		flushed := make(chan struct{})
		app.loop.Defer(func() { close(flushed) })
		select {
		case <-flushed:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not drain")
		}
		return true
	}
}

func TestAppRouteDispatch(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	app.Get("/users/{id}", func(req *Request, res *Response) {
		res.WriteStatus("200 OK")
		res.End([]byte("user " + req.Param(0)))
	})

	dispatch := startAppLoop(t, app)
	res := &appResponse{}
	require.True(t, dispatch("GET", "/users/7", res))

	status, body, ended := res.result()
	assert.Equal(t, "200 OK", status)
	assert.Equal(t, []byte("user 7"), body)
	assert.True(t, ended)
}

func TestAppMethodHelpers(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	noop := func(req *Request, res *Response) { res.End(nil) }

	app.Get("/r", noop)
	app.Post("/r", noop)
	app.Put("/r", noop)
	app.Delete("/r", noop)
	app.Patch("/r", noop)
	app.Head("/r", noop)
	app.Options("/r", noop)

	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"} {
		_, _, _, ok := app.mux.LookupHTTP(method, "/r")
		assert.True(t, ok, method)
	}
	_, _, _, ok := app.mux.LookupHTTP("TRACE", "/r")
	assert.False(t, ok)
}

func TestAppAnyFallback(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	app.Any("/anything", func(req *Request, res *Response) { res.End(nil) })

	for _, method := range []string{"GET", "POST", "DELETE"} {
		_, _, _, ok := app.mux.LookupHTTP(method, "/anything")
		assert.True(t, ok, method)
	}
}

func TestAppWebSocketRegistration(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	app.WebSocket("/ws/{room}", WebSocketHandlers{
		Open: func(ws *Conn) {},
	})

	behavior, params, ok := app.mux.LookupWebSocket("/ws/lobby")
	require.True(t, ok)
	require.NotNil(t, behavior.Open)
	assert.Equal(t, []string{"lobby"}, params)
}

func TestAppHandlerPanicProducesError(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	app.Get("/boom", func(req *Request, res *Response) {
		panic("exploded")
	})

	dispatch := startAppLoop(t, app)
	res := &appResponse{}
	require.True(t, dispatch("GET", "/boom", res))

	status, _, ended := res.result()
	assert.Equal(t, "500 Internal Server Error", status)
	assert.True(t, ended)
}

func TestAppListenAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Observability.Metrics.Enabled = false

	app := New(WithConfig(cfg), WithLogger(observability.NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(ctx)
	}()

	// Give the listener a moment to bind before stopping it.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-listenErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancellation")
	}
}

func TestAppListenTwice(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Observability.Metrics.Enabled = false

	app := New(WithConfig(cfg), WithLogger(observability.NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Listen(ctx) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	assert.ErrorIs(t, app.Listen(ctx), errAlreadyStarted)
}

func TestAppShutdownBeforeListen(t *testing.T) {
	t.Parallel()

	app := New(WithLogger(observability.NopLogger()))
	assert.NoError(t, app.Shutdown(context.Background()))
}
