// Package dispatch implements the coordination core of the city-info
// service: a single dispatcher task that fans each city lookup out to
// every fetch worker concurrently and merges their replies into one
// composite answer.
//
// # Architecture
//
// The dispatcher is an actor. It exclusively owns the set of fetcher
// handles, which is fixed at startup, and is reached only through a
// copyable Handle wrapping its request channel. No shared mutable
// state, and therefore no locks, exist anywhere in this package.
//
//	caller ──▶ Handle ──request──▶ dispatcher loop
//	                                  │ spawns one collector per request
//	                                  ▼
//	                     collector ──fan-out──▶ N fetch workers
//	                     collector ◀─outcomes── (any order)
//	caller ◀──CityInfo / error────── collector
//
// # Per-request isolation
//
// The dispatcher loop only routes: every aggregation request gets its
// own collector goroutine holding all of that request's state (reply
// channel, outcome channel, received set). Two in-flight requests share
// nothing, so a slow collection for one city can never delay another.
//
// # Timeouts and partial results
//
// Collection is a race between "all outcomes arrived" and the overall
// request deadline. When the deadline wins, the collector merges what
// it has; fetchers that never replied are recorded in Missing. Outcome
// channels are buffered per request, so straggler replies after the
// merge land in a channel nobody reads and are discarded — they can
// never leak into a later request.
//
// # Failure semantics
//
// Individual fetch failures are recorded as missing kinds on an
// otherwise successful CityInfo. Only the case of zero successful
// fragments surfaces as an error (ErrNoData), so callers can tell "no
// data at all" apart from "some data missing".
package dispatch
