// Package fetch implements the fetcher worker layer of the city-info
// service: independently running tasks that each produce one kind of
// data fragment for a city, reached only through cloneable handles.
//
// # Overview
//
// Every enabled data source runs inside its own worker goroutine. The
// worker exclusively owns its request channel; nothing else touches its
// state, so no locks are needed. Callers (in practice the dispatcher)
// hold a Handle, which wraps the request channel and hides the worker's
// internals.
//
// A fetch is a message exchange:
//
//	Handle.Fetch ──Request{city, reply}──▶ worker goroutine
//	                                          │ Source.Fetch(ctx, city)
//	Handle.Fetch ◀───────Outcome──────────────┘
//
// The reply channel is created fresh per fetch with capacity one, so
// the worker's single send never blocks, even if the waiter has already
// given up. A late outcome lands in a buffered channel nobody reads and
// is garbage collected with it; it can never be confused with the reply
// to a different fetch.
//
// # Failure model
//
// A worker always resolves each request to exactly one Outcome. Source
// errors, per-fetch timeouts, and panics inside a Source all become
// failure outcomes; none of them escape the worker or leave a waiter
// hanging. If the worker itself has shut down, Handle.Fetch observes
// the done channel and returns a failure outcome immediately.
//
// # Submission policy
//
// When a worker's queue is full, Handle.Fetch waits rather than failing
// fast. The wait is bounded by the caller's context deadline, so a
// backed-up worker degrades into timeout failures instead of silently
// dropping requests.
package fetch
