// pkg/engine/clock.go
package engine

import "time"

// Clock turns host timestamps into frame deltas.
type Clock struct {
	FirstFrame float64 // seconds used when there is no previous timestamp
	MaxDelta   float64 // upper bound in seconds; zero disables the clamp

	last    time.Time
	started bool
}

// NewClock creates a clock with the given first-frame delta and clamp.
func NewClock(firstFrame, maxDelta float64) *Clock {
	return &Clock{FirstFrame: firstFrame, MaxDelta: maxDelta}
}

// Tick records now and returns the delta since the previous tick together
// with the unclamped value. A timestamp earlier than the previous one
// yields zero.
func (c *Clock) Tick(now time.Time) (dt, raw float64) {
	if !c.started {
		c.started = true
		c.last = now
		raw = c.FirstFrame
	} else {
		raw = now.Sub(c.last).Seconds()
		c.last = now
	}
	if raw < 0 {
		raw = 0
	}
	return c.Clamp(raw), raw
}

// Clamp bounds dt to MaxDelta.
func (c *Clock) Clamp(dt float64) float64 {
	if c.MaxDelta > 0 && dt > c.MaxDelta {
		return c.MaxDelta
	}
	return dt
}

// Reset forgets the previous timestamp so the next tick is a first frame.
func (c *Clock) Reset() {
	c.started = false
	c.last = time.Time{}
}
