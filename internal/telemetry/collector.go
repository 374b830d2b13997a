// Package telemetry records scheduler firing jitter and per-domain
// service-call latency in HdrHistogram-backed distributions, and
// exposes both as a Prometheus collector. Grounded on the teacher's
// internal/metrics.Collector.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram range: 1 microsecond to 10 seconds of jitter/latency.
	minLatencyUs = 1
	maxLatencyUs = 10_000_000
	sigFigs      = 3
)

type opMetrics struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	count     atomic.Int64
}

func newOpMetrics() *opMetrics {
	return &opMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
}

func (op *opMetrics) record(us int64) {
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	op.mu.Lock()
	op.histogram.RecordValue(us)
	op.mu.Unlock()
	op.count.Add(1)
}

// Collector aggregates scheduler jitter and per-domain service-call
// latency for the running simulator.
type Collector struct {
	mu         sync.RWMutex
	jitter     *opMetrics
	serviceOps map[string]*opMetrics
	startTime  time.Time
}

// NewCollector constructs a Collector.
func NewCollector() *Collector {
	return &Collector{
		jitter:     newOpMetrics(),
		serviceOps: make(map[string]*opMetrics),
		startTime:  time.Now(),
	}
}

// RecordSchedulerJitter records the gap between a task's scheduled fire
// time and the moment it actually ran, as a simulated-time duration.
func (c *Collector) RecordSchedulerJitter(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.jitter.record(d.Microseconds())
}

// RecordServiceLatency records how long a domain's service-call handler
// took to execute.
func (c *Collector) RecordServiceLatency(domain string, d time.Duration) {
	c.getOrCreateOp(domain).record(d.Microseconds())
}

func (c *Collector) getOrCreateOp(domain string) *opMetrics {
	c.mu.RLock()
	op, ok := c.serviceOps[domain]
	c.mu.RUnlock()
	if ok {
		return op
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok = c.serviceOps[domain]; ok {
		return op
	}
	op = newOpMetrics()
	c.serviceOps[domain] = op
	return op
}

// Snapshot is a point-in-time view of everything the Collector has
// recorded.
type Snapshot struct {
	StartTime       time.Time
	Duration        time.Duration
	SchedulerJitter Distribution
	ServiceLatency  map[string]Distribution
}

// Distribution holds quantiles and counts for one recorded series, at the
// histogram's microsecond resolution.
type Distribution struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
}

func distributionFrom(op *opMetrics) Distribution {
	op.mu.Lock()
	exported := op.histogram.Export()
	op.mu.Unlock()
	h := hdrhistogram.Import(exported)

	return Distribution{
		Count: op.count.Load(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}

// GetSnapshot returns the current state of all recorded distributions.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		StartTime:       c.startTime,
		Duration:        time.Since(c.startTime),
		SchedulerJitter: distributionFrom(c.jitter),
		ServiceLatency:  make(map[string]Distribution, len(c.serviceOps)),
	}
	for domain, op := range c.serviceOps {
		snap.ServiceLatency[domain] = distributionFrom(op)
	}
	return snap
}
