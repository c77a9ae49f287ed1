package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/cookie"
)

func newTestController(t *testing.T, h *testHarness, res *fakeResponse) *Controller {
	t.Helper()

	var ctrl *Controller
	h.run(t, func() {
		ctrl = NewController(h.loop, h.registry, h.gate, res)
	})
	return ctrl
}

func TestControllerWriteOrdering(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	ctrl.WriteStatus("201 Created")
	ctrl.WriteHeader("X-First", "1")
	ctrl.WriteHeader("X-Second", "2")
	ctrl.End([]byte("done"))
	h.flush(t)

	status, headers, body, ended, _ := res.snapshot()
	assert.Equal(t, "201 Created", status)
	require.Len(t, headers, 2)
	assert.Equal(t, [2]string{"X-First", "1"}, headers[0])
	assert.Equal(t, [2]string{"X-Second", "2"}, headers[1])
	assert.Equal(t, []byte("done"), body)
	assert.True(t, ended)
}

func TestControllerEndIsTerminal(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	ctrl.End([]byte("first"))
	assert.Equal(t, StateEnded, ctrl.State())

	ctrl.End([]byte("second"))
	ctrl.WriteStatus("500 Internal Server Error")
	ctrl.WriteHeader("X-Late", "1")
	ctrl.Close()
	h.flush(t)

	status, headers, body, ended, closed := res.snapshot()
	assert.Equal(t, []byte("first"), body)
	assert.True(t, ended)
	assert.False(t, closed)
	assert.Empty(t, status)
	assert.Empty(t, headers)
	assert.True(t, ctrl.Aborted(), "terminal write conflates into the abort flag")
	assert.Equal(t, 0, h.registry.Len())
}

func TestControllerCloseIsTerminal(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	ctrl.Close()
	assert.Equal(t, StateClosed, ctrl.State())
	h.flush(t)

	_, _, _, ended, closed := res.snapshot()
	assert.True(t, closed)
	assert.False(t, ended)
	assert.True(t, ctrl.Aborted())
}

func TestControllerAbortMakesWritesNoops(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	h.run(t, func() { res.abortFn()() })

	assert.Equal(t, StateAborted, ctrl.State())
	assert.True(t, ctrl.Aborted())
	assert.Equal(t, 0, h.registry.Len())

	ctrl.WriteStatus("200 OK")
	ctrl.WriteHeader("X-A", "1")
	ctrl.End([]byte("late"))
	h.flush(t)

	status, headers, body, ended, _ := res.snapshot()
	assert.Empty(t, status)
	assert.Empty(t, headers)
	assert.Nil(t, body)
	assert.False(t, ended)
}

func TestControllerAbortDropsQueuedOperations(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	// Queue the abort ahead of the write so the write passes its
	// submission-time check but fails the execution-time recheck.
	h.loop.Defer(func() { res.abortFn()() })
	ctrl.End([]byte("racing"))
	h.flush(t)

	_, _, body, ended, _ := res.snapshot()
	assert.Nil(t, body)
	assert.False(t, ended)
}

func TestControllerOnAbortedCallback(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	fired := make(chan struct{})
	ctrl.OnAborted(func() { close(fired) })

	h.run(t, func() { res.abortFn()() })

	select {
	case <-fired:
	default:
		t.Fatal("abort callback did not run")
	}
}

func TestControllerOnData(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	var chunks []string
	var lastSeen bool
	ctrl.OnData(func(chunk []byte, last bool) {
		chunks = append(chunks, string(chunk))
		lastSeen = last
	})
	h.flush(t)

	h.run(t, func() {
		fn := res.dataFn()
		require.NotNil(t, fn)
		fn([]byte("hel"), false)
		fn([]byte("lo"), true)
	})

	assert.Equal(t, []string{"hel", "lo"}, chunks)
	assert.True(t, lastSeen)
}

func TestControllerOnDataStopsAfterAbort(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	var delivered int
	ctrl.OnData(func(chunk []byte, last bool) { delivered++ })
	h.flush(t)

	h.run(t, func() {
		res.abortFn()()
		res.dataFn()([]byte("late"), true)
	})

	assert.Zero(t, delivered)
	assert.True(t, ctrl.Aborted())
}

func TestControllerRemoteAddr(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	h.run(t, func() { res.abortFn()() })

	assert.Equal(t, "203.0.113.7:4711", ctrl.RemoteAddr(),
		"address stays readable after abort")
}

func TestControllerSetCookie(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	err := ctrl.SetCookie(cookie.Descriptor{
		Name:     "session",
		Value:    "abc123",
		Path:     "/",
		HTTPOnly: true,
	})
	require.NoError(t, err)
	h.flush(t)

	_, headers, _, _, _ := res.snapshot()
	require.Len(t, headers, 1)
	assert.Equal(t, "Set-Cookie", headers[0][0])
	assert.Equal(t, "session=abc123; Path=/; HttpOnly", headers[0][1])
}

func TestControllerSetCookieInvalid(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	err := ctrl.SetCookie(cookie.Descriptor{Name: "bad name", Value: "v"})
	assert.Error(t, err)
	h.flush(t)

	_, headers, _, _, _ := res.snapshot()
	assert.Empty(t, headers, "invalid cookie writes nothing")
}

func TestControllerClearCookie(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	require.NoError(t, ctrl.ClearCookie("session", "/", ""))
	h.flush(t)

	_, headers, _, _, _ := res.snapshot()
	require.Len(t, headers, 1)
	assert.Contains(t, headers[0][1], "session=")
	assert.Contains(t, headers[0][1], "Max-Age=0")
	assert.Contains(t, headers[0][1], "Expires=Thu, 01 Jan 1970 00:00:00 GMT")
}

func TestControllerStatusTracksLastWrite(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	res := &fakeResponse{}
	ctrl := newTestController(t, h, res)

	assert.Equal(t, "200 OK", ctrl.Status())
	ctrl.WriteStatus("404 Not Found")
	assert.Equal(t, "404 Not Found", ctrl.Status())

	ctrl.End(nil)
	ctrl.WriteStatus("500 Internal Server Error")
	assert.Equal(t, "404 Not Found", ctrl.Status(),
		"status writes after the terminal call do not stick")
	h.flush(t)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "ended", StateEnded.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", State(99).String())
}
