package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_Tick(t *testing.T) {
	c := NewClock(1.0/50, 0.1)
	t0 := time.Unix(1000, 0)

	dt, raw := c.Tick(t0)
	assert.Equal(t, 1.0/50, dt, "first frame uses the fallback")
	assert.Equal(t, 1.0/50, raw)

	dt, _ = c.Tick(t0.Add(16 * time.Millisecond))
	assert.InDelta(t, 0.016, dt, 1e-12)

	dt, raw = c.Tick(t0.Add(2 * time.Second))
	assert.Equal(t, 0.1, dt)
	assert.InDelta(t, 1.984, raw, 1e-12)

	dt, raw = c.Tick(t0)
	assert.Equal(t, 0.0, dt, "time going backwards yields zero")
	assert.Equal(t, 0.0, raw)
}

func TestClock_Reset(t *testing.T) {
	c := NewClock(0.02, 0.1)
	t0 := time.Unix(0, 0)
	c.Tick(t0)
	c.Tick(t0.Add(time.Second))

	c.Reset()
	dt, _ := c.Tick(t0.Add(time.Hour))
	assert.Equal(t, 0.02, dt)
}

func TestClock_Clamp(t *testing.T) {
	tests := []struct {
		name string
		max  float64
		in   float64
		want float64
	}{
		{"below", 0.1, 0.05, 0.05},
		{"at", 0.1, 0.1, 0.1},
		{"above", 0.1, 3, 0.1},
		{"disabled", 0, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClock(0.02, tt.max)
			assert.Equal(t, tt.want, c.Clamp(tt.in))
		})
	}
}
