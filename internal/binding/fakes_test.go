package binding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/runtimegate"
)

// fakeRequest implements engine.NativeRequest from canned fields.
type fakeRequest struct {
	method  string
	url     string
	query   string
	headers [][2]string
	params  []string
	ctx     context.Context
}

func (f *fakeRequest) Method() string { return f.method }
func (f *fakeRequest) URL() string    { return f.url }
func (f *fakeRequest) Query() string  { return f.query }

func (f *fakeRequest) ForEachHeader(fn func(name, value string) bool) {
	for _, h := range f.headers {
		if !fn(h[0], h[1]) {
			return
		}
	}
}

func (f *fakeRequest) Parameter(index int) string {
	if index < 0 || index >= len(f.params) {
		return ""
	}
	return f.params[index]
}

func (f *fakeRequest) Context() context.Context {
	if f.ctx != nil {
		return f.ctx
	}
	return context.Background()
}

// fakeResponse records native writes; fields are guarded because tests
// read them from the test goroutine after loop tasks ran.
type fakeResponse struct {
	mu      sync.Mutex
	status  string
	headers [][2]string
	body    []byte
	ended   bool
	closed  bool
	onData  func(chunk []byte, last bool)
	onAbort func()
}

func (f *fakeResponse) WriteStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeResponse) WriteHeader(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, [2]string{name, value})
}

func (f *fakeResponse) End(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
	f.ended = true
}

func (f *fakeResponse) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeResponse) OnData(fn func(chunk []byte, last bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData = fn
}

func (f *fakeResponse) OnAborted(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAbort = fn
}

func (f *fakeResponse) RemoteAddr() string { return "203.0.113.7:4711" }

func (f *fakeResponse) snapshot() (status string, headers [][2]string, body []byte, ended, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, append([][2]string(nil), f.headers...), f.body, f.ended, f.closed
}

func (f *fakeResponse) abortFn() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onAbort
}

func (f *fakeResponse) dataFn() func(chunk []byte, last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onData
}

// fakeSocket implements engine.NativeWebSocket.
type fakeSocket struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	subs   []string
	unsubs []string
}

func (f *fakeSocket) Send(message []byte, binary bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSocket) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSocket) Subscribe(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, topic)
}

func (f *fakeSocket) Unsubscribe(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, topic)
}

func (f *fakeSocket) Publish(topic string, message []byte, binary bool) {}
func (f *fakeSocket) RemoteAddr() string                               { return "203.0.113.9:4712" }

// testHarness bundles a running loop with the collaborators a
// controller needs.
type testHarness struct {
	loop     *engine.Loop
	registry *engine.Registry
	gate     *runtimegate.Gate
}

// startHarness runs a loop for the duration of the test.
func startHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		loop:     engine.NewLoop(),
		registry: engine.NewRegistry(),
		gate:     runtimegate.New(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return h
}

// flush waits until every task queued before the call has run.
func (h *testHarness) flush(t *testing.T) {
	t.Helper()

	ran := make(chan struct{})
	h.loop.Defer(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "loop did not drain in time")
	}
}

// run executes fn on the loop goroutine and waits for it.
func (h *testHarness) run(t *testing.T, fn func()) {
	t.Helper()

	done := make(chan struct{})
	h.loop.Defer(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "loop task did not run in time")
	}
}
