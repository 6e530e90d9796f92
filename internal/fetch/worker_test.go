// Package fetch implements the fetcher worker layer.
// This file contains tests for the worker task and its handle.
package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a controllable Source for tests: it can succeed, fail,
// delay, or panic.
type stubSource struct {
	kind   Kind
	delay  time.Duration
	err    error
	panics bool
}

func (s stubSource) Kind() Kind { return s.kind }

func (s stubSource) Fetch(ctx context.Context, city string) (string, error) {
	if s.panics {
		panic("stub source exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "data for " + city, nil
}

// TestWorkerFetchSuccess verifies the basic round trip: a request goes
// in, exactly one successful outcome comes back.
func TestWorkerFetchSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, stubSource{kind: "weather"}, 4, time.Second)

	out := h.Fetch(context.Background(), "Chicago")
	require.False(t, out.Failed())
	assert.Equal(t, Kind("weather"), out.Kind)
	assert.Equal(t, "data for Chicago", out.Data)
}

// TestWorkerFetchFailure verifies that a source error is carried as a
// failure outcome, not dropped or panicked.
func TestWorkerFetchFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sourceErr := errors.New("upstream unavailable")
	h := Spawn(ctx, stubSource{kind: "weather", err: sourceErr}, 4, time.Second)

	out := h.Fetch(context.Background(), "Chicago")
	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, sourceErr)
	assert.Empty(t, out.Data)
}

// TestWorkerFetchTimeout verifies that a slow source resolves to a
// failure outcome once the per-fetch timeout elapses, and that the
// caller is not held past it.
func TestWorkerFetchTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, stubSource{kind: "weather", delay: 2 * time.Second}, 4, 50*time.Millisecond)

	start := time.Now()
	out := h.Fetch(context.Background(), "Chicago")
	elapsed := time.Since(start)

	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 500*time.Millisecond, "fetch should resolve at the timeout, not the source's pace")
}

// TestWorkerPanicRecovered verifies that a panicking source still
// produces exactly one failure outcome instead of killing the worker.
func TestWorkerPanicRecovered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, stubSource{kind: "weather", panics: true}, 4, time.Second)

	out := h.Fetch(context.Background(), "Chicago")
	require.True(t, out.Failed())
	assert.Contains(t, out.Err.Error(), "panicked")

	// The worker must survive the panic and keep serving.
	out = h.Fetch(context.Background(), "Boston")
	assert.True(t, out.Failed(), "stub always panics, but the worker must still answer")
}

// TestWorkerStopped verifies that a fetch against a worker whose task
// has exited returns a failure immediately rather than hanging.
func TestWorkerStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := Spawn(ctx, stubSource{kind: "weather"}, 4, time.Second)

	cancel()
	// Give the worker loop a moment to observe cancellation.
	time.Sleep(20 * time.Millisecond)

	out := h.Fetch(context.Background(), "Chicago")
	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, ErrWorkerStopped)
}

// TestWorkerConcurrentFetches verifies that one worker handles requests
// concurrently: several slow fetches complete in roughly the time of
// one, not the sum.
func TestWorkerConcurrentFetches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, stubSource{kind: "weather", delay: 100 * time.Millisecond}, 8, time.Second)

	const n = 4
	results := make(chan Outcome, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		go func() {
			results <- h.Fetch(context.Background(), "Chicago")
		}()
	}
	for i := 0; i < n; i++ {
		out := <-results
		assert.False(t, out.Failed())
	}
	assert.Less(t, time.Since(start), 400*time.Millisecond,
		"fetches should overlap, not serialize")
}

// TestFetchContextExpired verifies that the caller's own context bounds
// the wait for a reply.
func TestFetchContextExpired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker timeout is long; the caller gives up first.
	h := Spawn(ctx, stubSource{kind: "weather", delay: 2 * time.Second}, 4, 5*time.Second)

	callCtx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()

	out := h.Fetch(callCtx, "Chicago")
	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}
