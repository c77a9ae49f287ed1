package strand

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/strandhttp/strand/internal/binding"
	"github.com/strandhttp/strand/internal/config"
	"github.com/strandhttp/strand/internal/cookie"
	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/engine/httpserver"
	"github.com/strandhttp/strand/internal/health"
	"github.com/strandhttp/strand/internal/observability"
	"github.com/strandhttp/strand/internal/runtimegate"
)

// Public surface aliases. Handlers receive an immutable Request view
// and a Response handle that stays safe to use after the peer is gone.
type (
	Request           = binding.Snapshot
	Response          = binding.Controller
	Handler           = binding.Handler
	WebSocketHandlers = binding.WebSocketHandlers
	Conn              = binding.WebSocket
	Cookie            = cookie.Descriptor
)

// Version is the library version, overridable at build time.
var Version = "dev"

// errAlreadyStarted reports a second Listen on the same App.
var errAlreadyStarted = errors.New("app already started")

// App is the framework entry point. Route registration is not safe
// concurrently with Listen.
type App struct {
	config  *config.Config
	logger  observability.Logger
	metrics *observability.Metrics

	loop     *engine.Loop
	registry *engine.Registry
	gate     *runtimegate.Gate
	mux      *engine.Mux
	broker   *engine.Broker
	table    *binding.Table
	server   *httpserver.Server

	mu      sync.Mutex
	started bool
}

// Option is a functional option for configuring an App.
type Option func(*App)

// WithConfig sets the configuration. Nil sections fall back to
// defaults.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		if cfg != nil {
			a.config = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *App) {
		a.metrics = metrics
	}
}

// New creates an App.
func New(opts ...Option) *App {
	a := &App{
		config: config.DefaultConfig(),
		gate:   runtimegate.New(),
		mux:    engine.NewMux(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		logCfg := observability.DefaultLogConfig()
		if a.config.Observability.Logging.Level != "" {
			logCfg.Level = a.config.Observability.Logging.Level
		}
		if a.config.Observability.Logging.Format != "" {
			logCfg.Format = a.config.Observability.Logging.Format
		}
		logger, err := observability.NewLogger(logCfg)
		if err != nil {
			logger = observability.NopLogger()
		}
		a.logger = logger
	}
	if a.metrics == nil && a.config.Observability.Metrics.Enabled {
		a.metrics = observability.NewMetrics(a.config.Observability.Metrics.Namespace)
	}

	a.loop = engine.NewLoop(
		engine.WithLoopLogger(a.logger),
		engine.WithLoopMetrics(a.metrics),
	)
	a.registry = engine.NewRegistry(engine.WithRegistryMetrics(a.metrics))
	a.broker = engine.NewBroker(
		engine.WithBrokerLogger(a.logger),
		engine.WithBrokerMetrics(a.metrics),
	)
	a.table = binding.NewTable(a.loop, a.registry, a.gate, a.mux,
		binding.WithTableLogger(a.logger),
		binding.WithTableMetrics(a.metrics),
	)

	return a
}

// Get registers a handler for GET requests.
func (a *App) Get(pattern string, handler Handler) { a.handle("GET", pattern, handler) }

// Post registers a handler for POST requests.
func (a *App) Post(pattern string, handler Handler) { a.handle("POST", pattern, handler) }

// Put registers a handler for PUT requests.
func (a *App) Put(pattern string, handler Handler) { a.handle("PUT", pattern, handler) }

// Delete registers a handler for DELETE requests.
func (a *App) Delete(pattern string, handler Handler) { a.handle("DELETE", pattern, handler) }

// Patch registers a handler for PATCH requests.
func (a *App) Patch(pattern string, handler Handler) { a.handle("PATCH", pattern, handler) }

// Head registers a handler for HEAD requests.
func (a *App) Head(pattern string, handler Handler) { a.handle("HEAD", pattern, handler) }

// Options registers a handler for OPTIONS requests.
func (a *App) Options(pattern string, handler Handler) { a.handle("OPTIONS", pattern, handler) }

// Any registers a handler for every method not bound explicitly on the
// same pattern.
func (a *App) Any(pattern string, handler Handler) { a.handle("*", pattern, handler) }

// WebSocket registers websocket lifecycle handlers for a pattern.
func (a *App) WebSocket(pattern string, handlers WebSocketHandlers) {
	a.table.BindWebSocket(pattern, handlers)
}

// handle wraps every handler with completion logging before binding.
func (a *App) handle(method, pattern string, handler Handler) {
	a.table.Bind(method, pattern, a.logged(handler))
}

// logged wraps a handler so each invocation leaves one request log
// line with the outcome.
func (a *App) logged(handler Handler) Handler {
	return func(req *Request, res *Response) {
		start := time.Now()
		handler(req, res)
		elapsed := time.Since(start)

		fields := []observability.Field{
			observability.String("method", req.Method()),
			observability.String("path", req.URL()),
			observability.String("status", res.Status()),
			observability.Duration("elapsed", elapsed),
			observability.String("remote_addr", res.RemoteAddr()),
		}
		switch {
		case res.Aborted() && res.State() == binding.StateAborted:
			a.logger.Warn("request aborted by peer", fields...)
		case elapsed > time.Second:
			a.logger.Warn("slow request", fields...)
		default:
			a.logger.Info("request", fields...)
		}
	}
}

// Listen starts the event loop and the HTTP server and blocks until
// ctx is cancelled or the listener fails. Shutdown is graceful within
// the configured timeout.
func (a *App) Listen(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errAlreadyStarted
	}
	a.started = true

	serverConfig := &httpserver.Config{
		Address:            a.config.Server.Address,
		Port:               a.config.Server.Port,
		ReadTimeout:        a.config.Server.ReadTimeout,
		WriteTimeout:       a.config.Server.WriteTimeout,
		IdleTimeout:        a.config.Server.IdleTimeout,
		MaxHeaderBytes:     a.config.Server.MaxHeaderBytes,
		MaxRequestBodySize: a.config.Server.MaxRequestBodySize,
	}
	if a.config.RateLimit.Enabled {
		serverConfig.RateLimit = a.config.RateLimit.RequestsPerSecond
		serverConfig.RateBurst = a.config.RateLimit.Burst
	}

	serverOpts := []httpserver.ServerOption{
		httpserver.WithServerLogger(a.logger),
		httpserver.WithUpgradeBuffers(
			a.config.WebSocket.ReadBufferSize,
			a.config.WebSocket.WriteBufferSize,
		),
	}
	if a.metrics != nil && a.config.Observability.Metrics.Enabled {
		path := a.config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		serverOpts = append(serverOpts,
			httpserver.WithMetricsEndpoint(path, a.metrics.Handler()))
	}

	checker := health.NewChecker(Version)
	checker.RegisterCheck("event_loop", health.LoopCheck(a.loop))
	checker.RegisterCheck("connections", health.ConnectionsCheck(a.registry))
	serverOpts = append(serverOpts,
		httpserver.WithProbeEndpoint("/healthz", checker.HealthHandler()),
		httpserver.WithProbeEndpoint("/readyz", checker.ReadinessHandler()),
	)

	a.server = httpserver.NewServer(serverConfig, a.loop, a.mux, a.broker, serverOpts...)
	a.mu.Unlock()

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(loopCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(ctx)
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			a.config.Server.ShutdownTimeout)
		err = a.server.Stop(shutdownCtx)
		cancel()
		<-serverErr
	case err = <-serverErr:
	}

	// The loop drains after the listener stops so in-flight responses
	// still complete.
	cancelLoop()
	<-loopDone

	a.logger.Info("application stopped")
	return err
}

// Shutdown stops the HTTP server gracefully. It is safe to call from
// any goroutine while Listen blocks.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Stop(ctx)
}

// Logger returns the application logger.
func (a *App) Logger() observability.Logger {
	return a.logger
}

// Metrics returns the metrics sink, which may be nil when metrics are
// disabled.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}
