package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/observability"
)

// startLoop runs a loop on a background goroutine and returns a stop
// function.
func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// await waits for a deferred marker task to complete, proving every
// earlier submission from this goroutine has run.
func await(t *testing.T, l *Loop) {
	t.Helper()
	done := make(chan struct{})
	l.Defer(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}
}

func TestLoopRunsTasksInSubmissionOrder(t *testing.T) {
	t.Parallel()

	l := NewLoop(WithLoopLogger(observability.NopLogger()))
	startLoop(t, l)

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		l.Defer(func() { order = append(order, i) })
	}
	await(t, l)

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestLoopDeferFromManyGoroutines(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	startLoop(t, l)

	var count int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Defer(func() { count++ })
			}
		}()
	}
	wg.Wait()
	await(t, l)

	assert.Equal(t, 400, count)
}

func TestLoopDeferFromLoopThread(t *testing.T) {
	t.Parallel()

	l := NewLoop()
	startLoop(t, l)

	var inner bool
	l.Defer(func() {
		l.Defer(func() { inner = true })
	})
	await(t, l)
	await(t, l)

	assert.True(t, inner)
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	t.Parallel()

	l := NewLoop(WithLoopLogger(observability.NopLogger()))
	startLoop(t, l)

	var after bool
	l.Defer(func() { panic("task failure") })
	l.Defer(func() { after = true })
	await(t, l)

	assert.True(t, after)
}

func TestLoopCountsDeferredTasks(t *testing.T) {
	t.Parallel()

	m := observability.NopMetrics()
	l := NewLoop(WithLoopMetrics(m))
	startLoop(t, l)

	l.Defer(func() {})
	await(t, l)
}
