package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
)

// Config holds the HTTP server settings.
type Config struct {
	Address        string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxRequestBodySize caps the request body in bytes. Zero disables
	// the limit.
	MaxRequestBodySize int64

	// RateLimit is the sustained requests-per-second budget. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the burst allowance when rate limiting is enabled.
	RateBurst int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:            "",
		Port:               8080,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxRequestBodySize: 10 << 20,
	}
}

// Server accepts HTTP and websocket traffic and dispatches it through
// the mux onto the event loop.
type Server struct {
	config   *Config
	loop     *engine.Loop
	mux      *engine.Mux
	broker   *engine.Broker
	logger   observability.Logger
	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	metricsPath    string
	metricsHandler http.Handler
	probes         map[string]http.Handler

	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsEndpoint serves handler directly at path, off the loop.
func WithMetricsEndpoint(path string, handler http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = handler
	}
}

// WithProbeEndpoint serves handler directly at path, off the loop.
// Probe paths take precedence over registered routes.
func WithProbeEndpoint(path string, handler http.Handler) ServerOption {
	return func(s *Server) {
		if s.probes == nil {
			s.probes = make(map[string]http.Handler)
		}
		s.probes[path] = handler
	}
}

// WithUpgradeBuffers sets the websocket upgrade buffer sizes.
func WithUpgradeBuffers(readSize, writeSize int) ServerOption {
	return func(s *Server) {
		if readSize > 0 {
			s.upgrader.ReadBufferSize = readSize
		}
		if writeSize > 0 {
			s.upgrader.WriteBufferSize = writeSize
		}
	}
}

// NewServer creates a server bound to an event loop and mux.
func NewServer(
	config *Config,
	loop *engine.Loop,
	mux *engine.Mux,
	broker *engine.Broker,
	opts ...ServerOption,
) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config: config,
		loop:   loop,
		mux:    mux,
		broker: broker,
		logger: observability.NopLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = int(config.RateLimit)
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
}

// Start runs the listener until it fails or Stop is called. It blocks.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:           s.Addr(),
		Handler:        s,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting server",
		observability.String("address", s.Addr()),
		observability.Duration("read_timeout", s.config.ReadTimeout),
		observability.Duration("write_timeout", s.config.WriteTimeout),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning reports whether the server is accepting traffic.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ServeHTTP translates one request into loop handles and parks until
// the response completes or the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.metricsHandler != nil && r.URL.Path == s.metricsPath {
		s.metricsHandler.ServeHTTP(w, r)
		return
	}
	if probe, ok := s.probes[r.URL.Path]; ok {
		probe.ServeHTTP(w, r)
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebSocket(w, r)
		return
	}

	handler, params, _, ok := s.mux.LookupHTTP(r.Method, r.URL.Path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	if s.config.MaxRequestBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestBodySize)
	}

	req := newRequest(r, params)
	res := newResponse(w, r, s.loop, s.logger)

	s.loop.Defer(func() {
		handler(res, req)
	})

	select {
	case <-res.done:
	case <-r.Context().Done():
		// The abort must land on the loop, after anything already
		// queued, before this goroutine releases the ResponseWriter.
		delivered := make(chan struct{})
		s.loop.Defer(func() {
			res.deliverAbort()
			close(delivered)
		})
		<-delivered
	}
}

// serveWebSocket upgrades the connection and starts its read pump.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	behavior, _, ok := s.mux.LookupWebSocket(r.URL.Path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		return
	}

	ws := newWSConn(conn, s.loop, s.broker, s.logger)
	s.loop.Defer(func() {
		if behavior.Open != nil {
			behavior.Open(ws)
		}
	})
	go ws.readPump(behavior)
}

// writeJSONError responds directly from the serving goroutine, before
// the request ever reaches the loop.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
