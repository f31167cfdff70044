// pkg/engine/state.go
package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/physics"
)

// State is the complete per-frame simulation state. It is owned by exactly
// one writer; Step is the only function that advances it.
type State struct {
	Profiles    [3]physics.AxisProfile
	Axes        [3]physics.AxisState
	Orientation physics.Orientation
	Pose        physics.BodyPose
	Camera      physics.ChaseCamera

	Frame uint64
	Time  float64 // simulated seconds
}

// StepResult reports what happened during one Step.
type StepResult struct {
	Previous   [3]physics.Regime
	Regimes    [3]physics.Regime
	Changed    [3]bool
	Rotated    bool
	GimbalLock bool
	Attitude   physics.EulerAngles
}

// LocalVelocity returns the three axis velocities as a body-frame vector.
func (s *State) LocalVelocity() mgl64.Vec3 {
	return mgl64.Vec3{s.Axes[0].Velocity, s.Axes[1].Velocity, s.Axes[2].Velocity}
}

// Step advances s by dt seconds under intent. The stages run in a fixed
// order, each reading what the previous one wrote this frame:
// axes, orientation, pose, camera. dt must already be validated.
func Step(s *State, intent input.Intent, dt float64) StepResult {
	var res StepResult

	translation := intent.Translation()
	for i := range s.Axes {
		res.Previous[i] = s.Axes[i].Regime()
		s.Axes[i].Step(s.Profiles[i], translation[i], dt)
		res.Regimes[i] = s.Axes[i].Regime()
		res.Changed[i] = res.Regimes[i] != res.Previous[i]
	}

	yaw := s.Orientation.Integrate(s.Pose.WorldMatrix(), intent.YawRate, dt)
	if yaw.Rotated {
		s.Pose.ApplyYaw(yaw.Attitude)
		res.Rotated = true
		res.GimbalLock = yaw.GimbalLock
		res.Attitude = yaw.Attitude
	}

	s.Pose.Integrate(s.LocalVelocity())

	world := s.Pose.WorldMatrix()
	s.Camera.Step(s.Camera.Target(world), dt)

	s.Frame++
	s.Time += dt
	return res
}
