// pkg/physics/pose.go
package physics

import "github.com/go-gl/mathgl/mgl64"

// BodyPose tracks the body's world placement.
// Only heading is fed back into the pose; LastAttitude keeps the most recent
// full decomposition so a pitch/roll flight model can be added on top.
type BodyPose struct {
	Position     mgl64.Vec3
	Heading      float64 // degrees about world up
	LastAttitude EulerAngles
}

// NewBodyPose places a body at position facing the given heading.
func NewBodyPose(position mgl64.Vec3, heading float64) BodyPose {
	return BodyPose{
		Position:     position,
		Heading:      heading,
		LastAttitude: EulerAngles{Yaw: heading},
	}
}

// WorldMatrix returns translation × yaw rotation for the current pose.
func (p BodyPose) WorldMatrix() mgl64.Mat4 {
	t := mgl64.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z())
	return t.Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(p.Heading)))
}

// ApplyYaw adopts the yaw of a decomposed attitude as the new heading.
func (p *BodyPose) ApplyYaw(att EulerAngles) {
	p.Heading = att.Yaw
	p.LastAttitude = att
}

// Integrate moves the body by a local-frame velocity. The velocity is
// rotated into world space as a direction (w=0) and subtracted, matching the
// sign the axis model produces for forward motion.
func (p *BodyPose) Integrate(local mgl64.Vec3) {
	delta := Transform(p.WorldMatrix(), local, 0)
	p.Position = p.Position.Sub(delta)
}
