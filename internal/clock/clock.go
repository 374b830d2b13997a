// Package clock provides the simulation's virtual clock: a wall-time to
// simulated-time mapping that supports speed changes, jumps, and pausing.
package clock

import (
	"sync"
	"time"
)

// Clock maps wall-clock time to simulated time at an adjustable rate.
// It is the single suspension-to-time contract in the simulator: every
// other component translates a simulated deadline into a wall-time sleep
// through this type rather than reading wall time directly.
type Clock struct {
	mu sync.Mutex

	anchorSim  time.Time
	anchorWall time.Time
	speed      float64

	paused      bool
	pausedAtSim time.Time
}

// New creates a Clock anchored at startTime running at the given speed.
// speed must be positive; non-positive values are coerced to 1.0.
func New(startTime time.Time, speed float64, paused bool) *Clock {
	if speed <= 0 {
		speed = 1.0
	}
	c := &Clock{
		anchorSim:  startTime,
		anchorWall: time.Now(),
		speed:      speed,
	}
	if paused {
		c.paused = true
		c.pausedAtSim = startTime
	}
	return c
}

// Now returns the current simulated time. While paused it returns the
// frozen pause value; otherwise it is anchorSim + (wallNow-anchorWall)*speed.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() time.Time {
	if c.paused {
		return c.pausedAtSim
	}
	elapsed := time.Since(c.anchorWall)
	return c.anchorSim.Add(time.Duration(float64(elapsed) * c.speed))
}

// SetTime jumps simulated time to t, re-anchoring so Now() returns t
// immediately regardless of pause state.
func (c *Clock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorSim = t
	c.anchorWall = time.Now()
	if c.paused {
		c.pausedAtSim = t
	}
}

// SetSpeed changes the acceleration factor, re-anchoring at the current
// simulated time so the change introduces no jump. Returns false (and
// leaves speed unchanged) if s is not positive — callers should surface
// this as InvalidArgument.
func (c *Clock) SetSpeed(s float64) bool {
	if s <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.nowLocked()
	c.anchorSim = current
	c.anchorWall = time.Now()
	c.speed = s
	return true
}

// Speed returns the current acceleration factor.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Pause freezes Now() at its current value. Idempotent.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.pausedAtSim = c.nowLocked()
	c.paused = true
}

// Resume re-anchors wall time to the current instant and unfreezes Now().
// No-op if not paused.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.anchorSim = c.pausedAtSim
	c.anchorWall = time.Now()
	c.paused = false
}

// IsPaused reports whether the clock is currently paused.
func (c *Clock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// WallTimeUntil returns the wall-clock duration until simulated time
// target is reached, and true, or (0, false) if target is not in the
// future or the clock is paused (a paused clock never reaches a future
// target on its own).
func (c *Clock) WallTimeUntil(target time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return 0, false
	}
	now := c.nowLocked()
	if !target.After(now) {
		return 0, false
	}
	simDelta := target.Sub(now)
	wallDelta := time.Duration(float64(simDelta) / c.speed)
	return wallDelta, true
}
