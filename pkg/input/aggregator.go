// Package input turns discrete key transitions into the four-component
// control intent consumed by the flight model.
package input

import "sync"

// Intent is the instantaneous control input. Each component is the sum of
// the unit contributions of the roles currently held.
type Intent struct {
	SurgeX  float64 `json:"surgeX"`
	SurgeY  float64 `json:"surgeY"`
	SurgeZ  float64 `json:"surgeZ"`
	YawRate float64 `json:"yawRate"`
}

// Translation returns the three translation components in axis order.
func (i Intent) Translation() [3]float64 {
	return [3]float64{i.SurgeX, i.SurgeY, i.SurgeZ}
}

// Component returns the value of one axis.
func (i Intent) Component(a Axis) float64 {
	switch a {
	case AxisSurgeX:
		return i.SurgeX
	case AxisSurgeY:
		return i.SurgeY
	case AxisSurgeZ:
		return i.SurgeZ
	case AxisYaw:
		return i.YawRate
	}
	return 0
}

// IsZero reports whether no axis has input.
func (i Intent) IsZero() bool {
	return i == Intent{}
}

// Aggregator tracks which roles are held. Key events may arrive from any
// goroutine; the simulation samples Intent once per frame.
type Aggregator struct {
	mu     sync.Mutex
	keys   KeyMap
	held   [RoleCount]bool
	intent Intent
}

// NewAggregator creates an aggregator using keys for code lookup. A nil map
// selects DefaultKeyMap.
func NewAggregator(keys KeyMap) *Aggregator {
	if keys == nil {
		keys = DefaultKeyMap()
	}
	return &Aggregator{keys: keys}
}

// OnKeyTransition applies a raw key event. It returns false for unmapped
// codes, which are otherwise ignored.
func (a *Aggregator) OnKeyTransition(code int, pressed bool) bool {
	role, ok := a.keys.Lookup(code)
	if !ok {
		return false
	}
	a.Set(role, pressed)
	return true
}

// Set presses or releases role and reports whether the held state changed.
// Repeated presses of a held role, and releases of an idle one, are no-ops.
func (a *Aggregator) Set(role Role, pressed bool) bool {
	if role < 0 || role >= RoleCount {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.held[role] == pressed {
		return false
	}
	a.held[role] = pressed

	c := contributions[role]
	delta := c.sign
	if !pressed {
		delta = -delta
	}
	a.add(c.axis, delta)
	return true
}

// Press holds role.
func (a *Aggregator) Press(role Role) bool { return a.Set(role, true) }

// Release lets go of role.
func (a *Aggregator) Release(role Role) bool { return a.Set(role, false) }

func (a *Aggregator) add(axis Axis, delta float64) {
	switch axis {
	case AxisSurgeX:
		a.intent.SurgeX += delta
	case AxisSurgeY:
		a.intent.SurgeY += delta
	case AxisSurgeZ:
		a.intent.SurgeZ += delta
	case AxisYaw:
		a.intent.YawRate += delta
	}
}

// isHeld reports whether role is currently held.
func (a *Aggregator) isHeld(role Role) bool {
	if role < 0 || role >= RoleCount {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.held[role]
}

// Intent returns the current intent.
func (a *Aggregator) Intent() Intent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.intent
}

// Reset releases every role.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.held = [RoleCount]bool{}
	a.intent = Intent{}
}

// KeyMap returns the bindings the aggregator resolves codes with.
func (a *Aggregator) KeyMap() KeyMap {
	return a.keys
}
