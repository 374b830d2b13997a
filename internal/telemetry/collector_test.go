package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.serviceOps == nil {
		t.Error("serviceOps map not initialized")
	}
}

func TestRecordSchedulerJitter(t *testing.T) {
	c := NewCollector()

	c.RecordSchedulerJitter(1 * time.Millisecond)
	c.RecordSchedulerJitter(2 * time.Millisecond)
	c.RecordSchedulerJitter(3 * time.Millisecond)

	snap := c.GetSnapshot()
	if snap.SchedulerJitter.Count != 3 {
		t.Errorf("expected 3 jitter samples, got %d", snap.SchedulerJitter.Count)
	}
}

func TestRecordSchedulerJitterClampsNegative(t *testing.T) {
	c := NewCollector()
	c.RecordSchedulerJitter(-5 * time.Millisecond)
	snap := c.GetSnapshot()
	if snap.SchedulerJitter.Min != 1*time.Microsecond {
		t.Errorf("expected negative jitter clamped to 1µs, got %v", snap.SchedulerJitter.Min)
	}
}

func TestRecordServiceLatencyPerDomain(t *testing.T) {
	c := NewCollector()

	c.RecordServiceLatency("light", 1*time.Millisecond)
	c.RecordServiceLatency("light", 2*time.Millisecond)
	c.RecordServiceLatency("climate", 5*time.Millisecond)

	snap := c.GetSnapshot()

	light, ok := snap.ServiceLatency["light"]
	if !ok {
		t.Fatal("expected a 'light' domain entry")
	}
	if light.Count != 2 {
		t.Errorf("expected 2 light samples, got %d", light.Count)
	}

	climate, ok := snap.ServiceLatency["climate"]
	if !ok {
		t.Fatal("expected a 'climate' domain entry")
	}
	if climate.Count != 1 {
		t.Errorf("expected 1 climate sample, got %d", climate.Count)
	}
}

func TestLatencyPercentiles(t *testing.T) {
	c := NewCollector()

	for i := 1; i <= 100; i++ {
		c.RecordServiceLatency("query", time.Duration(i)*time.Millisecond)
	}

	snap := c.GetSnapshot()
	dist := snap.ServiceLatency["query"]

	if dist.P50 < 45*time.Millisecond || dist.P50 > 55*time.Millisecond {
		t.Errorf("P50 out of range: got %v, expected ~50ms", dist.P50)
	}
	if dist.P99 < 95*time.Millisecond || dist.P99 > 100*time.Millisecond {
		t.Errorf("P99 out of range: got %v, expected ~99ms", dist.P99)
	}
	if dist.Min < 900*time.Microsecond || dist.Min > 1100*time.Microsecond {
		t.Errorf("Min out of range: got %v, expected ~1ms", dist.Min)
	}
	if dist.Max < 99*time.Millisecond || dist.Max > 101*time.Millisecond {
		t.Errorf("Max out of range: got %v, expected ~100ms", dist.Max)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCollector()

	const numGoroutines = 50
	const opsPerGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			domain := "even"
			if id%2 != 0 {
				domain = "odd"
			}
			for j := 0; j < opsPerGoroutine; j++ {
				c.RecordServiceLatency(domain, time.Duration(j+1)*time.Microsecond)
			}
		}(i)
	}
	wg.Wait()

	snap := c.GetSnapshot()
	var total int64
	for _, dist := range snap.ServiceLatency {
		total += dist.Count
	}
	if total != numGoroutines*opsPerGoroutine {
		t.Errorf("expected %d total samples, got %d", numGoroutines*opsPerGoroutine, total)
	}
}

func TestMinLatencyClamp(t *testing.T) {
	c := NewCollector()
	c.RecordServiceLatency("fast", 100*time.Nanosecond)
	snap := c.GetSnapshot()
	if snap.ServiceLatency["fast"].Min != 1*time.Microsecond {
		t.Errorf("expected min latency clamped to 1µs, got %v", snap.ServiceLatency["fast"].Min)
	}
}
