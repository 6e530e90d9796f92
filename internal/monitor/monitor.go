// Package monitor tracks the health of the fetcher workers and basic
// service statistics for the /health and /status endpoints.
//
// Health is derived from the outcomes the dispatcher already collects:
// every fetch outcome is reported here, and a kind that fails several
// times in a row is marked degraded until it succeeds again. No extra
// probing traffic is generated.
package monitor

import (
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"

	"github.com/dreamware/cityinfo/internal/fetch"
)

// Fetcher status values.
const (
	StatusUnknown  = "unknown"  // no outcome observed yet
	StatusHealthy  = "healthy"  // last outcome succeeded
	StatusDegraded = "degraded" // maxFailures consecutive failures
)

// latencyWindow is how many recent request durations are kept for
// percentile calculation.
const latencyWindow = 1024

// FetcherHealth is the tracked state of a single fetcher kind.
type FetcherHealth struct {
	Kind             fetch.Kind `json:"kind"`
	Status           string     `json:"status"`
	ConsecutiveFails int        `json:"consecutive_fails"`
	LastOutcome      time.Time  `json:"last_outcome"`
	LastSuccess      time.Time  `json:"last_success"`
}

// Monitor aggregates fetcher health and request statistics.
// All methods are safe for concurrent use.
type Monitor struct {
	mu          sync.RWMutex
	fetchers    map[fetch.Kind]*FetcherHealth
	latencies   []float64 // milliseconds, ring of latencyWindow
	next        int
	requests    uint64
	maxFailures int
	started     time.Time
}

// New returns a Monitor tracking the given fetcher kinds. A kind is
// marked degraded after maxFailures consecutive failure outcomes.
func New(kinds []fetch.Kind, maxFailures int) *Monitor {
	m := &Monitor{
		fetchers:    make(map[fetch.Kind]*FetcherHealth, len(kinds)),
		latencies:   make([]float64, 0, latencyWindow),
		maxFailures: maxFailures,
		started:     time.Now(),
	}
	for _, k := range kinds {
		m.fetchers[k] = &FetcherHealth{Kind: k, Status: StatusUnknown}
	}
	return m
}

// ReportOutcome records one fetch outcome and updates the health of
// the outcome's kind. Transitions into and out of degraded are logged.
func (m *Monitor) ReportOutcome(out fetch.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	health, ok := m.fetchers[out.Kind]
	if !ok {
		// Outcomes only ever carry kinds registered at startup.
		return
	}
	health.LastOutcome = time.Now()

	if out.Failed() {
		health.ConsecutiveFails++
		if health.ConsecutiveFails >= m.maxFailures && health.Status != StatusDegraded {
			health.Status = StatusDegraded
			log.WithField("kind", out.Kind).
				Warnf("fetcher degraded after %d consecutive failures", health.ConsecutiveFails)
		}
		return
	}

	if health.Status == StatusDegraded {
		log.WithField("kind", out.Kind).Info("fetcher recovered")
	}
	health.Status = StatusHealthy
	health.ConsecutiveFails = 0
	health.LastSuccess = health.LastOutcome
}

// TrackRequest records the duration of one completed aggregation
// request for the latency percentiles.
func (m *Monitor) TrackRequest(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if len(m.latencies) < latencyWindow {
		m.latencies = append(m.latencies, ms)
		return
	}
	m.latencies[m.next] = ms
	m.next = (m.next + 1) % latencyWindow
}

// FetcherStates returns a copy of the current health of every tracked
// fetcher kind.
func (m *Monitor) FetcherStates() []FetcherHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FetcherHealth, 0, len(m.fetchers))
	for _, h := range m.fetchers {
		out = append(out, *h)
	}
	return out
}

// Degraded reports whether any tracked fetcher is currently degraded.
func (m *Monitor) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.fetchers {
		if h.Status == StatusDegraded {
			return true
		}
	}
	return false
}

// LatencyStats summarizes recent request durations in milliseconds.
type LatencyStats struct {
	Requests uint64  `json:"requests"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// SystemStats is a point-in-time snapshot of process and host load.
type SystemStats struct {
	NumGoroutine    int       `json:"num_goroutine"`
	AllocBytes      uint64    `json:"alloc_bytes"`
	NumGC           uint32    `json:"num_gc"`
	TotalRAM        uint64    `json:"total_ram"`
	AvailableRAM    uint64    `json:"available_ram"`
	UsedRAMPercent  float64   `json:"used_ram_percent"`
	TotalCPUCores   int       `json:"total_cpu_cores"`
	CPUUsagePercent []float64 `json:"cpu_usage_percent"`
}

// Status is the full payload served on /status.
type Status struct {
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Fetchers      []FetcherHealth `json:"fetchers"`
	Latency       LatencyStats    `json:"latency"`
	System        SystemStats     `json:"system"`
}

// Snapshot assembles the current Status.
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	samples := append([]float64(nil), m.latencies...)
	requests := m.requests
	started := m.started
	m.mu.RUnlock()

	latency := LatencyStats{Requests: requests}
	if len(samples) > 0 {
		// stats errors only occur on empty input, which is excluded here.
		latency.P50Ms, _ = stats.Median(samples)
		latency.P95Ms, _ = stats.Percentile(samples, 95)
		latency.P99Ms, _ = stats.Percentile(samples, 99)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	system := SystemStats{
		NumGoroutine:  runtime.NumGoroutine(),
		AllocBytes:    memStats.Alloc,
		NumGC:         memStats.NumGC,
		TotalCPUCores: runtime.NumCPU(),
	}
	if vMem, err := mem.VirtualMemory(); err == nil {
		system.TotalRAM = vMem.Total
		system.AvailableRAM = vMem.Available
		system.UsedRAMPercent = vMem.UsedPercent
	}
	if cpuPercent, err := cpu.Percent(0, true); err == nil {
		system.CPUUsagePercent = cpuPercent
	}

	return Status{
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(started).Seconds(),
		Fetchers:      m.FetcherStates(),
		Latency:       latency,
		System:        system,
	}
}
