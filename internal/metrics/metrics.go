// Package metrics provides the request accounting of the ANISA service.
//
// An Accumulator is created once by the process and handed to every
// component that records outcomes; there is no package-level instance.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accumulator counts processed requests and tracks their latency.
type Accumulator struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64

	// latencyMu guards the running average and the bounded sample window.
	latencyMu      sync.Mutex
	avgLatencyMs   float64
	latencyCount   int64
	latencySamples []float64
	maxSamples     int

	byVariantMu sync.RWMutex
	byVariant   map[string]int64

	startMu   sync.RWMutex
	startTime time.Time
}

// New creates an Accumulator keeping at most maxSamples latency samples for
// min/max reporting. The running average covers every request.
func New(maxSamples int) *Accumulator {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Accumulator{
		latencySamples: make([]float64, 0, maxSamples),
		maxSamples:     maxSamples,
		byVariant:      make(map[string]int64),
		startTime:      time.Now(),
	}
}

// RecordSuccess counts a completed request.
func (a *Accumulator) RecordSuccess(latency time.Duration, variant string) {
	a.total.Add(1)
	a.successful.Add(1)
	a.recordLatency(latency)
	if variant != "" {
		a.byVariantMu.Lock()
		a.byVariant[variant]++
		a.byVariantMu.Unlock()
	}
}

// RecordFailure counts a request that ended in the degraded path.
func (a *Accumulator) RecordFailure(latency time.Duration) {
	a.total.Add(1)
	a.failed.Add(1)
	a.recordLatency(latency)
}

func (a *Accumulator) recordLatency(latency time.Duration) {
	ms := float64(latency) / float64(time.Millisecond)

	a.latencyMu.Lock()
	defer a.latencyMu.Unlock()

	a.latencyCount++
	a.avgLatencyMs += (ms - a.avgLatencyMs) / float64(a.latencyCount)

	a.latencySamples = append(a.latencySamples, ms)
	if len(a.latencySamples) > a.maxSamples {
		a.latencySamples = a.latencySamples[len(a.latencySamples)-a.maxSamples:]
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (a *Accumulator) Snapshot() *Snapshot {
	a.latencyMu.Lock()
	stats := LatencyStats{AverageMs: a.avgLatencyMs, Samples: int64(len(a.latencySamples))}
	for i, s := range a.latencySamples {
		if i == 0 || s < stats.MinMs {
			stats.MinMs = s
		}
		if s > stats.MaxMs {
			stats.MaxMs = s
		}
	}
	a.latencyMu.Unlock()

	a.byVariantMu.RLock()
	byVariant := make(map[string]int64, len(a.byVariant))
	for k, v := range a.byVariant {
		byVariant[k] = v
	}
	a.byVariantMu.RUnlock()

	a.startMu.RLock()
	start := a.startTime
	a.startMu.RUnlock()

	return &Snapshot{
		TotalRequests:      a.total.Load(),
		SuccessfulRequests: a.successful.Load(),
		FailedRequests:     a.failed.Load(),
		Latency:            stats,
		ByVariant:          byVariant,
		UptimeSeconds:      int64(time.Since(start).Seconds()),
		Timestamp:          time.Now(),
	}
}

// Reset clears every counter and restarts the uptime clock.
func (a *Accumulator) Reset() {
	a.total.Store(0)
	a.successful.Store(0)
	a.failed.Store(0)

	a.latencyMu.Lock()
	a.avgLatencyMs = 0
	a.latencyCount = 0
	a.latencySamples = make([]float64, 0, a.maxSamples)
	a.latencyMu.Unlock()

	a.byVariantMu.Lock()
	a.byVariant = make(map[string]int64)
	a.byVariantMu.Unlock()

	a.startMu.Lock()
	a.startTime = time.Now()
	a.startMu.Unlock()
}

// Snapshot is a serializable view of an Accumulator.
type Snapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	Latency            LatencyStats     `json:"latency"`
	ByVariant          map[string]int64 `json:"by_variant"`
	UptimeSeconds      int64            `json:"uptime_seconds"`
	Timestamp          time.Time        `json:"timestamp"`
}

// LatencyStats summarizes request latency in milliseconds.
type LatencyStats struct {
	AverageMs float64 `json:"average_ms"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
	Samples   int64   `json:"samples"`
}

// SuccessRate is the share of successful requests as a percentage (0-100).
// Returns 0 before the first request.
func (s *Snapshot) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0.0
	}
	return (float64(s.SuccessfulRequests) / float64(s.TotalRequests)) * 100.0
}
