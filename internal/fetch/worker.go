// Package fetch implements the fetcher worker layer.
// This file contains the worker task that runs a Source.
package fetch

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Worker runs one Source as an independent task. It exclusively owns
// its request channel; requests are handled concurrently, each under
// its own per-fetch timeout.
type Worker struct {
	source   Source
	requests chan Request
	done     chan struct{}
	timeout  time.Duration
}

// Spawn starts a worker for src and returns the Handle used to submit
// fetches to it. The worker runs until ctx is canceled; queueSize is
// the capacity of its request channel and timeout bounds each
// individual fetch.
func Spawn(ctx context.Context, src Source, queueSize int, timeout time.Duration) Handle {
	w := &Worker{
		source:   src,
		requests: make(chan Request, queueSize),
		done:     make(chan struct{}),
		timeout:  timeout,
	}
	go w.run(ctx)
	return Handle{kind: src.Kind(), requests: w.requests, done: w.done}
}

// run is the worker loop: receive requests until ctx is canceled. Each
// request is handled in its own goroutine so one slow fetch never
// blocks the others.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	log.WithField("kind", w.source.Kind()).Info("fetch worker started")

	for {
		select {
		case req := <-w.requests:
			go w.handle(ctx, req)
		case <-ctx.Done():
			log.WithField("kind", w.source.Kind()).Info("fetch worker stopping")
			return
		}
	}
}

// handle resolves one request to exactly one Outcome. Source errors,
// timeouts, and panics all become failure outcomes; the reply channel
// is buffered so the single send never blocks, even when the waiter
// already gave up.
func (w *Worker) handle(ctx context.Context, req Request) {
	kind := w.source.Kind()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"kind": kind, "city": req.City}).
				Errorf("source panicked: %v", r)
			req.Reply <- Outcome{Kind: kind, Err: fmt.Errorf("source %s panicked: %v", kind, r)}
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	data, err := w.source.Fetch(fctx, req.City)
	if err != nil {
		log.WithFields(log.Fields{"kind": kind, "city": req.City}).
			Warnf("fetch failed: %v", err)
		req.Reply <- Outcome{Kind: kind, Err: err}
		return
	}
	req.Reply <- Outcome{Kind: kind, Data: data}
}
