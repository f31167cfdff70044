package engine

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/physics"
)

const frame = 1.0 / 60.0

func newState() State {
	p := physics.DefaultAxisProfile()
	cam := physics.NewChaseCamera(mgl64.Vec3{4.5, 5, 10}, 500, mgl64.Vec3{0, 5, -10})
	return State{
		Profiles:    [3]physics.AxisProfile{p, p, p},
		Orientation: physics.Orientation{YawGain: 108},
		Pose:        physics.NewBodyPose(mgl64.Vec3{0, 10, 0}, 0),
		Camera:      *cam,
	}
}

func TestStep_IdleLeavesBodyAtRest(t *testing.T) {
	s := newState()
	for i := 0; i < 10; i++ {
		res := Step(&s, input.Intent{}, frame)
		assert.False(t, res.Rotated)
	}
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, s.Pose.Position)
	assert.Equal(t, uint64(10), s.Frame)
	assert.InDelta(t, 10*frame, s.Time, 1e-12)
}

func TestStep_ForwardMovesAlongHeading(t *testing.T) {
	tests := []struct {
		name    string
		heading float64
		dir     mgl64.Vec3
	}{
		{"facing +z", 0, mgl64.Vec3{0, 0, 1}},
		{"facing +x", 90, mgl64.Vec3{1, 0, 0}},
		{"facing -z", 180, mgl64.Vec3{0, 0, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState()
			s.Pose.Heading = tt.heading
			for i := 0; i < 30; i++ {
				Step(&s, input.Intent{SurgeZ: -1}, frame)
			}
			moved := s.Pose.Position.Sub(mgl64.Vec3{0, 10, 0})
			require.Greater(t, moved.Len(), 0.0)
			assert.InDelta(t, 1, moved.Normalize().Dot(tt.dir), 1e-9)
		})
	}
}

func TestStep_LiftUpRaisesBody(t *testing.T) {
	s := newState()
	for i := 0; i < 30; i++ {
		Step(&s, input.Intent{SurgeY: -1}, frame)
	}
	assert.Greater(t, s.Pose.Position.Y(), 10.0)
	assert.InDelta(t, 0, s.Pose.Position.X(), 1e-12)
}

func TestStep_ReportsRegimeChanges(t *testing.T) {
	s := newState()

	res := Step(&s, input.Intent{SurgeZ: -1}, frame)
	assert.Equal(t, [3]bool{false, false, true}, res.Changed)
	assert.Equal(t, physics.RegimeIdle, res.Previous[2])
	assert.Equal(t, physics.RegimeAccelerate, res.Regimes[2])

	res = Step(&s, input.Intent{SurgeZ: -1}, frame)
	assert.Equal(t, [3]bool{}, res.Changed)

	res = Step(&s, input.Intent{SurgeZ: 1}, frame)
	assert.True(t, res.Changed[2])
	assert.Equal(t, physics.RegimeBrake, res.Regimes[2])
}

func TestStep_YawUpdatesHeadingBeforePose(t *testing.T) {
	s := newState()
	// Give the body forward speed, then yaw for one frame.
	s.Axes[2].Velocity = -1

	res := Step(&s, input.Intent{YawRate: 1}, 0.5)
	require.True(t, res.Rotated)
	assert.InDelta(t, 54, s.Pose.Heading, 1e-9)

	// The displacement follows the new heading.
	moved := s.Pose.Position.Sub(mgl64.Vec3{0, 10, 0})
	rad := mgl64.DegToRad(54)
	want := mgl64.Vec3{math.Sin(rad), 0, math.Cos(rad)}
	assert.InDelta(t, 1, moved.Normalize().Dot(want), 1e-9)
}

func TestStep_CameraChasesUpdatedPose(t *testing.T) {
	s := newState()
	for i := 0; i < 600; i++ {
		Step(&s, input.Intent{}, frame)
	}
	target := s.Camera.Target(s.Pose.WorldMatrix())
	assert.InDelta(t, 0, s.Camera.Position.Sub(target).Len(), 1e-3)
	assert.True(t, target.ApproxEqual(mgl64.Vec3{0, 15, -10}))
}

func TestStep_HoldForwardThenRelease(t *testing.T) {
	s := newState()
	start := s.Pose.Position
	forward := input.Intent{SurgeZ: -1}

	for i := 0; i < 120; i++ {
		Step(&s, forward, frame)
	}
	assert.Equal(t, s.Profiles[2].MaxAccel, s.Axes[2].Acceleration, "ramp should have capped within 2 s")
	assert.Less(t, s.Axes[2].Velocity, 0.0)
	peak := s.Pose.Position.Z()
	assert.Greater(t, peak, start.Z())

	// Fixed values for the default profile after 2 s at 60 Hz.
	assert.InDelta(t, 103.36307610811596, peak, 1e-9)
	assert.InDelta(t, -1.6329463072851682, s.Axes[2].Velocity, 1e-9)

	settled := -1
	for i := 0; i < 600; i++ {
		Step(&s, input.Intent{}, frame)
		if s.Axes[2].Acceleration == 0 && math.Abs(s.Axes[2].Velocity) < 1e-3 {
			settled = i
			break
		}
	}
	require.NotEqual(t, -1, settled, "body never came to rest")
	assert.Equal(t, 181, settled, "idle frames until rest")
	assert.InDelta(t, 181.0532285505287, s.Pose.Position.Z(), 1e-9)

	// The body coasts forward after release and never reverses.
	assert.Greater(t, s.Pose.Position.Z(), peak)
	assert.InDelta(t, start.X(), s.Pose.Position.X(), 1e-9)
	assert.InDelta(t, start.Y(), s.Pose.Position.Y(), 1e-9)
	for i := range s.Axes {
		assert.Equal(t, 0.0, s.Axes[i].Acceleration, "axis %d", i)
	}
}
