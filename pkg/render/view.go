// pkg/render/view.go
package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldUp is the up hint handed to the look-at construction.
var WorldUp = mgl64.Vec3{0, 1, 0}

// Lens describes a perspective projection.
type Lens struct {
	FOV  float64 // vertical field of view, degrees
	Near float64
	Far  float64
}

// DefaultLens returns a 60° lens with planes at 0.1 and 100.
func DefaultLens() Lens {
	return Lens{FOV: 60, Near: 0.1, Far: 100}
}

// Projection returns the perspective matrix for aspect (width/height).
func (l Lens) Projection(aspect float64) mgl64.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl64.Perspective(mgl64.DegToRad(l.FOV), aspect, l.Near, l.Far)
}

// Frame is the camera side of one rendered frame.
type Frame struct {
	Camera         mgl64.Vec3
	LookAt         mgl64.Vec3
	View           mgl64.Mat4
	Projection     mgl64.Mat4
	ViewProjection mgl64.Mat4
}

// Assemble builds the view and projection for a camera looking at lookAt.
// A camera sitting on its target keeps the axis-aligned orientation, and a
// view direction parallel to WorldUp swaps the up hint to +z.
func Assemble(lens Lens, camera, lookAt mgl64.Vec3, aspect float64) Frame {
	view := lookAtView(camera, lookAt)
	proj := lens.Projection(aspect)
	return Frame{
		Camera:         camera,
		LookAt:         lookAt,
		View:           view,
		Projection:     proj,
		ViewProjection: proj.Mul4(view),
	}
}

func lookAtView(camera, lookAt mgl64.Vec3) mgl64.Mat4 {
	dir := lookAt.Sub(camera)
	if dir.Len() < 1e-9 {
		return mgl64.Translate3D(-camera.X(), -camera.Y(), -camera.Z())
	}
	up := WorldUp
	if dir.Normalize().Cross(up).Len() < 1e-9 {
		up = mgl64.Vec3{0, 0, 1}
	}
	return mgl64.LookAtV(camera, lookAt, up)
}

// WVP composes projection × view × world.
func (f Frame) WVP(world mgl64.Mat4) mgl64.Mat4 {
	return f.ViewProjection.Mul4(world)
}

// ProjectToScreen maps a point through wvp to pixel coordinates with the
// origin at the top left. ok is false for points behind the camera or
// outside the clip volume.
func ProjectToScreen(wvp mgl64.Mat4, p mgl64.Vec3, width, height int) (x, y float64, ok bool) {
	clip := wvp.Mul4x1(p.Vec4(1))
	w := clip.W()
	if w <= 0 {
		return 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / w)
	x = (ndc.X() + 1) / 2 * float64(width)
	y = (1 - ndc.Y()) / 2 * float64(height)
	inside := math.Abs(ndc.X()) <= 1 && math.Abs(ndc.Y()) <= 1 && math.Abs(ndc.Z()) <= 1
	return x, y, inside
}
