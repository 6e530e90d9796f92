// Package fetch implements the fetcher worker layer.
// This file defines the message types, the Source contract, and the
// Handle used to submit work to a running worker.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies one category of city data (e.g. "weather").
// Each worker produces fragments of exactly one kind.
type Kind string

// Errors surfaced through failure outcomes.
var (
	// ErrWorkerStopped is the failure cause when a fetch is submitted to
	// a worker whose task has exited.
	ErrWorkerStopped = errors.New("fetch worker stopped")
)

// Request asks a worker for data about one city. Reply must have
// capacity for one outcome; the worker sends exactly once and never
// closes it.
type Request struct {
	City  string
	Reply chan<- Outcome
}

// Outcome is the tagged result of a single fetch: either Data (Err nil)
// or a failure (Err non-nil, Data empty). Never both, never neither.
type Outcome struct {
	Kind Kind
	Data string
	Err  error
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool { return o.Err != nil }

// Source is the capability contract a worker wraps: given a city name,
// produce a formatted data fragment or an error. Implementations may
// perform network I/O and must honor ctx cancellation.
type Source interface {
	// Kind returns the category of data this source produces.
	Kind() Kind

	// Fetch retrieves and formats data for the named city.
	Fetch(ctx context.Context, city string) (string, error)
}

// Handle is a lightweight, copyable reference to a running worker.
// All copies submit to the same worker; a Handle is safe for concurrent
// use because the channel it wraps serializes access.
type Handle struct {
	kind     Kind
	requests chan<- Request
	done     <-chan struct{}
}

// Kind returns the kind of data the underlying worker produces.
func (h Handle) Kind() Kind { return h.kind }

// Fetch submits a request for city and blocks until the worker replies,
// the worker is found stopped, or ctx expires. It always returns an
// Outcome: worker-side problems arrive as failure outcomes, and
// submission-side problems (stopped worker, expired context) are
// converted to failure outcomes here so the caller never distinguishes
// transport faults from fetch faults.
func (h Handle) Fetch(ctx context.Context, city string) Outcome {
	reply := make(chan Outcome, 1)

	// Submission waits on a full queue, bounded by ctx.
	select {
	case h.requests <- Request{City: city, Reply: reply}:
	case <-h.done:
		return Outcome{Kind: h.kind, Err: ErrWorkerStopped}
	case <-ctx.Done():
		return Outcome{Kind: h.kind, Err: fmt.Errorf("submit fetch: %w", ctx.Err())}
	}

	select {
	case out := <-reply:
		return out
	case <-h.done:
		// The worker exited between accepting the request and replying.
		// Check for a reply that raced the shutdown before giving up.
		select {
		case out := <-reply:
			return out
		default:
			return Outcome{Kind: h.kind, Err: ErrWorkerStopped}
		}
	case <-ctx.Done():
		return Outcome{Kind: h.kind, Err: fmt.Errorf("await fetch: %w", ctx.Err())}
	}
}
