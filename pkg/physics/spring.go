// pkg/physics/spring.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ChaseCamera is a critically damped spring that pulls the camera toward a
// point fixed in the body's local frame.
type ChaseCamera struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3

	Stiffness float64
	Offset    mgl64.Vec3 // target in body-local coordinates

	// MaxSubstep splits long frames into equal explicit-Euler substeps no
	// longer than this many seconds. Zero integrates each frame in one step.
	MaxSubstep float64
}

// NewChaseCamera creates a camera at rest at position.
func NewChaseCamera(position mgl64.Vec3, stiffness float64, offset mgl64.Vec3) *ChaseCamera {
	return &ChaseCamera{
		Position:  position,
		Stiffness: stiffness,
		Offset:    offset,
	}
}

// Damping returns the critical damping coefficient 2·sqrt(k).
func (c *ChaseCamera) Damping() float64 {
	return 2 * math.Sqrt(c.Stiffness)
}

// Target maps the local offset through the body's world matrix.
func (c *ChaseCamera) Target(world mgl64.Mat4) mgl64.Vec3 {
	return Transform(world, c.Offset, 1)
}

// Step advances the spring toward target by dt seconds.
func (c *ChaseCamera) Step(target mgl64.Vec3, dt float64) {
	n := 1
	if c.MaxSubstep > 0 && dt > c.MaxSubstep {
		n = int(math.Ceil(dt / c.MaxSubstep))
	}
	h := dt / float64(n)
	for i := 0; i < n; i++ {
		c.integrate(target, h)
	}
}

func (c *ChaseCamera) integrate(target mgl64.Vec3, dt float64) {
	delta := c.Position.Sub(target)
	acc := delta.Mul(-c.Stiffness).Sub(c.Velocity.Mul(c.Damping()))
	c.Velocity = c.Velocity.Add(acc.Mul(dt))
	c.Position = c.Position.Add(c.Velocity.Mul(dt))
}
