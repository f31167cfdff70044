package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEuler_YawOnly(t *testing.T) {
	tests := []float64{0, 30, -45, 90, 135, -170}
	for _, yaw := range tests {
		m := mgl64.HomogRotate3DY(mgl64.DegToRad(yaw))
		att, locked := ExtractEuler(m)

		assert.False(t, locked)
		assert.InDelta(t, yaw, att.Yaw, 1e-9, "yaw %v", yaw)
		assert.InDelta(t, 0, att.Pitch, 1e-9)
		assert.InDelta(t, 0, att.Roll, 1e-9)
	}
}

func TestExtractEuler_IgnoresTranslation(t *testing.T) {
	m := mgl64.Translate3D(4, -2, 9).Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(30)))
	att, _ := ExtractEuler(m)
	assert.InDelta(t, 30, att.Yaw, 1e-9)
}

func TestExtractEuler_GimbalLock(t *testing.T) {
	// R31 = +1: the body's forward axis points straight along -up.
	m := mgl64.Mat4FromRows(
		mgl64.Vec4{1, 0, 0, 0},
		mgl64.Vec4{0, 0, 1, 0},
		mgl64.Vec4{0, -1, 0, 0},
		mgl64.Vec4{0, 0, 0, 1},
	)

	att, locked := ExtractEuler(m)

	require.True(t, locked)
	assert.Equal(t, 0.0, att.Roll)
	assert.InDelta(t, -90, att.Pitch, 1e-9)
	assert.False(t, math.IsNaN(att.Yaw))
	assert.InDelta(t, 0, att.Yaw, 1e-9)
}

func TestExtractEuler_GimbalLockNegativePole(t *testing.T) {
	m := mgl64.Mat4FromRows(
		mgl64.Vec4{1, 0, 0, 0},
		mgl64.Vec4{0, 0, -1, 0},
		mgl64.Vec4{0, 1, 0, 0},
		mgl64.Vec4{0, 0, 0, 1},
	)

	att, locked := ExtractEuler(m)

	require.True(t, locked)
	assert.Equal(t, 0.0, att.Roll)
	assert.InDelta(t, 90, att.Pitch, 1e-9)
	assert.False(t, math.IsNaN(att.Yaw))
}

func TestRotateAboutLocalUp_MatchesYawRotation(t *testing.T) {
	world := mgl64.HomogRotate3DY(mgl64.DegToRad(30))
	rotated := RotateAboutLocalUp(world, 15)

	att, _ := ExtractEuler(rotated)
	assert.InDelta(t, 45, att.Yaw, 1e-9)
	assert.True(t, rotated.ApproxEqualThreshold(mgl64.HomogRotate3DY(mgl64.DegToRad(45)), 1e-9))
}

func TestOrientation_Integrate(t *testing.T) {
	o := Orientation{YawGain: 108}

	t.Run("zero intent is a no-op", func(t *testing.T) {
		res := o.Integrate(mgl64.Ident4(), 0, frame)
		assert.False(t, res.Rotated)
	})

	t.Run("one second at full intent turns by the gain", func(t *testing.T) {
		pose := NewBodyPose(mgl64.Vec3{}, 0)
		for i := 0; i < 60; i++ {
			res := o.Integrate(pose.WorldMatrix(), 1, frame)
			require.True(t, res.Rotated)
			pose.ApplyYaw(res.Attitude)
		}
		assert.InDelta(t, 108, pose.Heading, 1e-6)
	})

	t.Run("partial intent scales linearly", func(t *testing.T) {
		res := o.Integrate(mgl64.Ident4(), -0.5, 0.1)
		assert.InDelta(t, -5.4, res.Attitude.Yaw, 1e-9)
	})
}

func TestYawIncrement(t *testing.T) {
	assert.InDelta(t, 1.8, YawIncrement(108, frame, 1), 1e-12)
	assert.Equal(t, 0.0, YawIncrement(108, frame, 0))
}
