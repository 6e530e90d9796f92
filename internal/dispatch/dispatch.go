// Package dispatch implements the coordination core of the service.
// This file contains the dispatcher task, its handle, and the composite
// result type.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/cityinfo/internal/fetch"
)

// Errors returned by the dispatcher.
var (
	// ErrNoData is returned when zero fetchers produced a fragment for a
	// request. It is distinct from a partial result so callers can tell
	// "nothing available" apart from "some data missing".
	ErrNoData = errors.New("no data source produced data")

	// ErrClosed is returned when the dispatcher task has shut down.
	ErrClosed = errors.New("dispatcher is closed")

	// ErrNoFetchers is returned by Spawn for an empty fetcher set.
	// A dispatcher with nothing to fan out to is a configuration error.
	ErrNoFetchers = errors.New("at least one fetcher is required")

	// ErrEmptyCity is returned for a blank lookup key.
	ErrEmptyCity = errors.New("city name must not be empty")
)

// CityInfo is the merged answer for one city: one fragment per fetcher
// kind that succeeded, plus the kinds that produced nothing. A CityInfo
// with a non-empty Missing list is still a success as long as at least
// one fragment is present.
type CityInfo struct {
	City      string            `json:"city"`
	Fragments map[string]string `json:"fragments"`
	Missing   []string          `json:"missing,omitempty"`
}

// Partial reports whether any fetcher kind is missing from the result.
func (c CityInfo) Partial() bool { return len(c.Missing) > 0 }

// Observer receives dispatch telemetry: every fetch outcome seen during
// collection and the total duration of every completed request.
// Implementations must be safe for concurrent use.
type Observer interface {
	ReportOutcome(fetch.Outcome)
	TrackRequest(time.Duration)
}

// request pairs a lookup key with the reply channel of the caller
// awaiting this specific aggregation. reply has capacity one; the
// collector sends exactly once.
type request struct {
	id    string
	city  string
	reply chan<- result
}

// result is what a collector sends back: a CityInfo or an error, never
// both.
type result struct {
	info CityInfo
	err  error
}

// Options configures a dispatcher.
type Options struct {
	// Timeout bounds the collection phase of each request.
	Timeout time.Duration

	// QueueSize is the capacity of the inbound request channel.
	QueueSize int

	// Observer, when non-nil, receives outcome and latency telemetry.
	Observer Observer
}

// Dispatcher is the coordinating task. It owns the fetcher handle set
// exclusively; external callers interact with it only through Handle.
type Dispatcher struct {
	fetchers []fetch.Handle
	requests chan request
	done     chan struct{}
	timeout  time.Duration
	observer Observer
}

// Spawn validates the fetcher set, starts the dispatcher task, and
// returns the Handle callers use to reach it. The task runs until ctx
// is canceled. The fetcher set must be non-empty and carry unique
// kinds, since composite results are keyed by kind.
func Spawn(ctx context.Context, fetchers []fetch.Handle, opts Options) (Handle, error) {
	if len(fetchers) == 0 {
		return Handle{}, ErrNoFetchers
	}
	seen := make(map[fetch.Kind]bool, len(fetchers))
	for _, h := range fetchers {
		if seen[h.Kind()] {
			return Handle{}, fmt.Errorf("duplicate fetcher kind %q", h.Kind())
		}
		seen[h.Kind()] = true
	}

	d := &Dispatcher{
		fetchers: fetchers,
		requests: make(chan request, opts.QueueSize),
		done:     make(chan struct{}),
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
	go d.run(ctx)
	return Handle{requests: d.requests, done: d.done}, nil
}

// run is the dispatcher loop. It only routes: each request is handed to
// its own collector goroutine, so collection for one request never
// blocks receipt of the next.
func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	log.Infof("dispatcher started with %d fetchers", len(d.fetchers))

	for {
		select {
		case req := <-d.requests:
			go d.collect(ctx, req)
		case <-ctx.Done():
			log.Info("dispatcher stopping")
			return
		}
	}
}

// collect fans one request out to every fetcher, gathers outcomes until
// all have arrived or the deadline elapses, merges, and replies.
// All state here is private to this goroutine; the only shared inputs
// are the fetcher handles, which are safe for concurrent use.
func (d *Dispatcher) collect(ctx context.Context, req request) {
	start := time.Now()
	logger := log.WithFields(log.Fields{"request_id": req.id, "city": req.city})
	logger.Info("aggregating city info")

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered to the fan-out width so straggler sends never block and
	// late outcomes are simply never read.
	outcomes := make(chan fetch.Outcome, len(d.fetchers))
	for _, h := range d.fetchers {
		go func(h fetch.Handle) {
			outcomes <- h.Fetch(cctx, req.city)
		}(h)
	}

	received := make(map[fetch.Kind]bool, len(d.fetchers))
	info := CityInfo{City: req.city, Fragments: make(map[string]string)}

collecting:
	for range d.fetchers {
		select {
		case out := <-outcomes:
			received[out.Kind] = true
			if d.observer != nil {
				d.observer.ReportOutcome(out)
			}
			if out.Failed() {
				logger.WithField("kind", out.Kind).Warnf("fetch failed: %v", out.Err)
				info.Missing = append(info.Missing, string(out.Kind))
				continue
			}
			info.Fragments[string(out.Kind)] = out.Data
		case <-cctx.Done():
			logger.Warn("collection deadline elapsed, merging partial outcomes")
			break collecting
		}
	}

	// Fetchers that never replied within the deadline count as missing.
	for _, h := range d.fetchers {
		if !received[h.Kind()] {
			info.Missing = append(info.Missing, string(h.Kind()))
		}
	}
	slices.Sort(info.Missing)

	res := result{info: info}
	if len(info.Fragments) == 0 {
		res = result{err: ErrNoData}
	}
	if d.observer != nil {
		d.observer.TrackRequest(time.Since(start))
	}
	// Sending transfers the obligation to respond; the reply channel is
	// buffered so this never blocks even if the caller has gone away.
	req.reply <- res

	logger.WithFields(log.Fields{
		"fragments":   len(info.Fragments),
		"missing":     len(info.Missing),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("request merged")
}

// Handle is the caller-facing front of the dispatcher. It is copyable
// and safe for concurrent use; every copy reaches the same task.
type Handle struct {
	requests chan<- request
	done     <-chan struct{}
}

// CityInfo submits an aggregation request for city and blocks until the
// composite result arrives, the dispatcher shuts down, or ctx expires.
// Submission waits when the queue is full, bounded by ctx.
func (h Handle) CityInfo(ctx context.Context, city string) (CityInfo, error) {
	if strings.TrimSpace(city) == "" {
		return CityInfo{}, ErrEmptyCity
	}

	reply := make(chan result, 1)
	req := request{id: uuid.NewString(), city: city, reply: reply}

	select {
	case h.requests <- req:
	case <-h.done:
		return CityInfo{}, ErrClosed
	case <-ctx.Done():
		return CityInfo{}, fmt.Errorf("submit request: %w", ctx.Err())
	}

	select {
	case res := <-reply:
		return res.info, res.err
	case <-h.done:
		// The dispatcher exited after accepting the request; a collector
		// may still have replied just before shutdown.
		select {
		case res := <-reply:
			return res.info, res.err
		default:
			return CityInfo{}, ErrClosed
		}
	case <-ctx.Done():
		return CityInfo{}, fmt.Errorf("await result: %w", ctx.Err())
	}
}
