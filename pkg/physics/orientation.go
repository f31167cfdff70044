// pkg/physics/orientation.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EulerAngles is a decomposed body attitude in degrees.
type EulerAngles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// bodyAxes orders the matrix axes as forward (z), right (x), up (y) so that
// the textbook yaw/pitch/roll decomposition applies to a Y-up world.
var bodyAxes = [3]int{2, 0, 1}

// r returns the 1-based element Rij of the rotation submatrix in body axis order.
func r(m mgl64.Mat4, i, j int) float64 {
	return m.At(bodyAxes[i-1], bodyAxes[j-1])
}

// LocalUp returns the body's up axis in world space (second column).
func LocalUp(world mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{world.At(0, 1), world.At(1, 1), world.At(2, 1)}
}

// YawIncrement is the heading change in degrees for one frame.
func YawIncrement(yawGain, dt, yawIntent float64) float64 {
	return yawGain * dt * yawIntent
}

// RotateAboutLocalUp left-multiplies world by a rotation of deg degrees
// around the body's current up axis.
func RotateAboutLocalUp(world mgl64.Mat4, deg float64) mgl64.Mat4 {
	up := LocalUp(world)
	if up.Len() == 0 {
		return world
	}
	q := mgl64.QuatRotate(mgl64.DegToRad(deg), up.Normalize())
	return q.Mat4().Mul4(world)
}

// ExtractEuler decomposes the rotation part of m. At the poles (R31 = ±1)
// roll is pinned to zero and yaw absorbs the remaining freedom.
// The second return value reports whether the gimbal-lock branch was taken.
func ExtractEuler(m mgl64.Mat4) (EulerAngles, bool) {
	var theta, phi, psi float64
	locked := false

	r31 := r(m, 3, 1)
	if r31 < 1 && r31 > -1 {
		theta = -math.Asin(r31)
		c := math.Cos(theta)
		phi = math.Atan2(r(m, 3, 2)/c, r(m, 3, 3)/c)
		psi = math.Atan2(r(m, 2, 1)/c, r(m, 1, 1)/c)
	} else {
		locked = true
		phi = 0
		if r31 <= -1 {
			theta = math.Pi / 2
			psi = phi + math.Atan2(r(m, 1, 2), r(m, 1, 3))
		} else {
			theta = -math.Pi / 2
			psi = math.Atan2(-r(m, 1, 2), -r(m, 1, 3)) - phi
		}
	}

	return EulerAngles{
		Yaw:   mgl64.RadToDeg(psi),
		Pitch: mgl64.RadToDeg(theta),
		Roll:  mgl64.RadToDeg(phi),
	}, locked
}

// Orientation integrates yaw intent into the body attitude.
type Orientation struct {
	YawGain float64 // degrees per second at full intent
}

// YawResult is the outcome of one orientation step.
type YawResult struct {
	Rotated    bool
	Attitude   EulerAngles
	GimbalLock bool
}

// Integrate rotates world by the frame's yaw increment and decomposes the
// result. A zero intent leaves the pose untouched and reports Rotated=false.
func (o Orientation) Integrate(world mgl64.Mat4, yawIntent, dt float64) YawResult {
	if yawIntent == 0 {
		return YawResult{}
	}
	rotated := RotateAboutLocalUp(world, YawIncrement(o.YawGain, dt, yawIntent))
	att, locked := ExtractEuler(rotated)
	return YawResult{Rotated: true, Attitude: att, GimbalLock: locked}
}
