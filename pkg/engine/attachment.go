// pkg/engine/attachment.go
package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dronesim/pkg/config"
)

// Attachment is a drawable bound to the body, such as a propeller or a
// sky box. Attachments never influence the flight model.
type Attachment struct {
	Name     string
	Kind     string
	Offset   mgl64.Vec3
	SpinRate float64 // degrees per second about the local up axis
	Angle    float64 // current spin, degrees in [0, 360)
}

// NewAttachment builds an attachment from its configuration.
func NewAttachment(c config.AttachmentConfig) *Attachment {
	return &Attachment{
		Name:     c.Name,
		Kind:     c.Kind,
		Offset:   c.Offset,
		SpinRate: c.SpinRate,
	}
}

// Advance spins the attachment by dt seconds.
func (a *Attachment) Advance(dt float64) {
	if a.Kind != config.AttachSpinner || a.SpinRate == 0 {
		return
	}
	a.Angle = math.Mod(a.Angle+a.SpinRate*dt, 360)
	if a.Angle < 0 {
		a.Angle += 360
	}
}

// World places the attachment relative to the body. Spinners inherit the
// full body transform; followers only take its translation.
func (a *Attachment) World(body mgl64.Mat4) mgl64.Mat4 {
	local := mgl64.Translate3D(a.Offset.X(), a.Offset.Y(), a.Offset.Z())
	if a.Kind == config.AttachFollower {
		origin := body.Col(3)
		return mgl64.Translate3D(origin.X(), origin.Y(), origin.Z()).Mul4(local)
	}
	spin := mgl64.HomogRotate3DY(mgl64.DegToRad(a.Angle))
	return body.Mul4(local).Mul4(spin)
}

// TerrainMatrix composes the static terrain placement.
func TerrainMatrix(t config.TerrainConfig) mgl64.Mat4 {
	tr := mgl64.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z())
	rx := mgl64.HomogRotate3DX(mgl64.DegToRad(t.RotationX))
	s := t.Scale
	if s == 0 {
		s = 1
	}
	sc := mgl64.Scale3D(s, s, s)
	if t.RotateFirst {
		return rx.Mul4(tr).Mul4(sc)
	}
	return tr.Mul4(rx).Mul4(sc)
}

// SceneryMatrix places a static prop.
func SceneryMatrix(s config.SceneryConfig) mgl64.Mat4 {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	return mgl64.Translate3D(s.Position.X(), s.Position.Y(), s.Position.Z()).
		Mul4(mgl64.Scale3D(scale, scale, scale))
}
