package engine

import (
	"context"
	"sync"

	"github.com/strandhttp/strand/internal/observability"
)

// Loop is the single-threaded event loop. All native connection state
// is owned by the goroutine running Run; every other goroutine submits
// work through Defer.
//
// Tasks submitted from the same goroutine run in submission order.
// Tasks interleaved from multiple goroutines have no cross-goroutine
// ordering guarantee beyond earlier-submitted tasks running to
// completion before later ones.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	logger  observability.Logger
	metrics *observability.Metrics
}

// LoopOption is a functional option for configuring the loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger for the loop.
func WithLoopLogger(logger observability.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithLoopMetrics sets the metrics sink for the loop.
func WithLoopMetrics(metrics *observability.Metrics) LoopOption {
	return func(l *Loop) {
		l.metrics = metrics
	}
}

// NewLoop creates a loop. Run must be called before deferred tasks are
// processed.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Defer submits a task to run on the loop goroutine. It never blocks
// and is safe to call from any goroutine, including the loop itself.
func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.TaskDeferred()
	}

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes deferred tasks until ctx is cancelled. It must be
// called from exactly one goroutine; that goroutine becomes the loop
// thread.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.drain()
		}
	}
}

// drain runs every queued task, including tasks queued while draining.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runTask(fn)
		}
	}
}

// runTask executes one task, containing panics: a failing task must
// never take the loop down with it.
func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("deferred task panicked",
				observability.Any("panic", r),
			)
		}
	}()
	fn()
}
