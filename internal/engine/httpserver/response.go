package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
)

// bodyChunkSize is the read size for streamed request bodies.
const bodyChunkSize = 32 * 1024

// response adapts http.ResponseWriter to the engine's response surface.
// Every method runs on the loop goroutine; the serving goroutine only
// touches the done channel and the abort delivery.
type response struct {
	w      http.ResponseWriter
	r      *http.Request
	loop   *engine.Loop
	logger observability.Logger

	statusCode int
	finished   bool
	pumping    bool
	onData     func(chunk []byte, last bool)
	onAbort    func()

	// done is closed on the loop goroutine when the response reaches a
	// terminal native write, releasing the parked serving goroutine.
	done chan struct{}
}

func newResponse(
	w http.ResponseWriter,
	r *http.Request,
	loop *engine.Loop,
	logger observability.Logger,
) *response {
	return &response{
		w:          w,
		r:          r,
		loop:       loop,
		logger:     logger,
		statusCode: http.StatusOK,
		done:       make(chan struct{}),
	}
}

func (p *response) WriteStatus(status string) {
	if p.finished {
		return
	}
	if code, err := strconv.Atoi(firstToken(status)); err == nil && code >= 100 && code < 600 {
		p.statusCode = code
	}
}

func (p *response) WriteHeader(name, value string) {
	if p.finished {
		return
	}
	p.w.Header().Add(name, value)
}

func (p *response) End(body []byte) {
	if p.finished {
		return
	}
	p.finished = true

	p.w.WriteHeader(p.statusCode)
	if len(body) > 0 {
		if _, err := p.w.Write(body); err != nil {
			p.logger.Debug("response body write failed",
				observability.Error(err),
			)
		}
	}
	close(p.done)
}

func (p *response) Close() {
	if p.finished {
		return
	}
	p.finished = true

	// Closing the underlying connection keeps the peer from treating
	// the truncated exchange as a complete response.
	if hj, ok := p.w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	}
	close(p.done)
}

func (p *response) OnData(fn func(chunk []byte, last bool)) {
	p.onData = fn
	if p.pumping {
		return
	}
	p.pumping = true
	go p.pumpBody()
}

// pumpBody reads the request body off-loop and forwards each chunk onto
// the loop. The final chunk is delivered with last=true; a read error
// other than EOF ends delivery with an empty final chunk so observers
// always see completion.
func (p *response) pumpBody() {
	body := p.r.Body
	for {
		buf := make([]byte, bodyChunkSize)
		n, err := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			last := err == io.EOF
			p.loop.Defer(func() {
				if p.onData != nil {
					p.onData(chunk, last)
				}
			})
			if last {
				return
			}
		}
		if err != nil {
			p.loop.Defer(func() {
				if p.onData != nil {
					p.onData(nil, true)
				}
			})
			return
		}
	}
}

func (p *response) OnAborted(fn func()) {
	p.onAbort = fn
}

func (p *response) RemoteAddr() string {
	return p.r.RemoteAddr
}

// deliverAbort runs on the loop goroutine when the client disconnects
// before the response completes.
func (p *response) deliverAbort() {
	if p.finished {
		return
	}
	p.finished = true
	if p.onAbort != nil {
		p.onAbort()
	}
}

// firstToken returns status up to the first space.
func firstToken(status string) string {
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[:i]
	}
	return status
}
