// pkg/physics/throttle.go
package physics

import "math"

// DeadBand is the magnitude below which a controlling signal counts as "no input".
const DeadBand = 0.1

// accelSnap is the magnitude under which a decaying acceleration is forced to zero.
const accelSnap = 1e-3

// Regime classifies an axis' controlling signal.
type Regime int

const (
	RegimeIdle Regime = iota
	RegimeAccelerate
	RegimeBrake
)

// String returns the regime name used in logs and events
func (r Regime) String() string {
	switch r {
	case RegimeAccelerate:
		return "accelerate"
	case RegimeBrake:
		return "brake"
	default:
		return "idle"
	}
}

// AxisProfile holds the tuning constants of one translation axis.
type AxisProfile struct {
	SteadyAccel     float64 `json:"steadyAccel" mapstructure:"steadyAccel"`
	MaxAccel        float64 `json:"maxAccel" mapstructure:"maxAccel"`
	AccelRampUp     float64 `json:"accelRampUp" mapstructure:"accelRampUp"`
	AccelRampDown   float64 `json:"accelRampDown" mapstructure:"accelRampDown"`
	SteadyBrake     float64 `json:"steadyBrake" mapstructure:"steadyBrake"`
	MaxBrake        float64 `json:"maxBrake" mapstructure:"maxBrake"`
	BrakeRampUp     float64 `json:"brakeRampUp" mapstructure:"brakeRampUp"`
	BrakeRampDown   float64 `json:"brakeRampDown" mapstructure:"brakeRampDown"` // tuning only, the dead band decays at AccelRampDown
	FrictionLogRate float64 `json:"frictionLogRate" mapstructure:"frictionLogRate"`
}

// DefaultAxisProfile returns the drone's driving coefficients.
// Friction keeps 5% of the velocity per second of simulated time.
func DefaultAxisProfile() AxisProfile {
	return AxisProfile{
		SteadyAccel:     0.5,
		MaxAccel:        5.0,
		AccelRampUp:     3.0,
		AccelRampDown:   5.5,
		SteadyBrake:     1.0,
		MaxBrake:        3.0,
		BrakeRampUp:     5.0,
		BrakeRampDown:   5.5,
		FrictionLogRate: math.Log(0.05),
	}
}

// AxisState is the memory of one translation axis between frames.
type AxisState struct {
	PreviousSignal float64
	Acceleration   float64
	Velocity       float64
}

// controlSignal mirrors the raw intent into the signal the ramp state
// machine runs on. The key bindings put "forward" on the negative side of
// every axis, so the ramps see the negated value while acceleration and
// velocity keep the user-facing sign. This is the only place the mirror lives.
func controlSignal(intent float64) float64 {
	return -intent
}

// classify returns the regime selected by a controlling signal.
func classify(signal float64) Regime {
	switch {
	case signal > DeadBand:
		return RegimeAccelerate
	case signal >= -DeadBand:
		return RegimeIdle
	default:
		return RegimeBrake
	}
}

// Regime reports the regime the axis was in on its last step.
func (s *AxisState) Regime() Regime {
	return classify(s.PreviousSignal)
}

// Step advances the axis by dt seconds under the given intent and returns
// the new velocity.
func (s *AxisState) Step(p AxisProfile, intent, dt float64) float64 {
	signal := controlSignal(intent)

	switch classify(signal) {
	case RegimeAccelerate:
		if s.PreviousSignal > DeadBand {
			s.Acceleration += p.AccelRampUp * dt
			if s.Acceleration > p.MaxAccel {
				s.Acceleration = p.MaxAccel
			}
		} else if s.Acceleration < p.SteadyAccel {
			s.Acceleration = p.SteadyAccel
		}
	case RegimeIdle:
		s.Acceleration = decayToward0(s.Acceleration, p, dt)
	case RegimeBrake:
		if s.PreviousSignal < -DeadBand {
			s.Acceleration -= p.BrakeRampUp * dt
			if s.Acceleration < -p.MaxBrake {
				s.Acceleration = -p.MaxBrake
			}
		} else if s.Acceleration > -p.SteadyBrake {
			s.Acceleration = -p.SteadyBrake
		}
	}

	s.PreviousSignal = signal
	s.Velocity = s.Velocity*math.Exp(p.FrictionLogRate*dt) - dt*s.Acceleration
	return s.Velocity
}

// decayToward0 shrinks the magnitude of acc without letting it change sign.
// Both signs decay at AccelRampDown.
func decayToward0(acc float64, p AxisProfile, dt float64) float64 {
	if acc == 0 {
		return 0
	}
	step := p.AccelRampDown * dt
	if math.Abs(acc) <= step {
		return 0
	}
	acc -= step * math.Copysign(1, acc)
	if math.Abs(acc) < accelSnap {
		return 0
	}
	return acc
}
