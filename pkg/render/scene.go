// pkg/render/scene.go
package render

import "github.com/go-gl/mathgl/mgl64"

// DrawableKind tells hosts how to draw a matrix they received.
type DrawableKind int

const (
	KindBody DrawableKind = iota
	KindAttachment
	KindTerrain
	KindScenery
)

// String returns the kind name.
func (k DrawableKind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindAttachment:
		return "attachment"
	case KindTerrain:
		return "terrain"
	case KindScenery:
		return "scenery"
	}
	return "unknown"
}

// Drawable is one object's placement for the current frame.
type Drawable struct {
	Name  string
	Kind  DrawableKind
	World mgl64.Mat4
	WVP   mgl64.Mat4
}

// Origin returns the drawable's world-space origin.
func (d Drawable) Origin() mgl64.Vec3 {
	return d.World.Col(3).Vec3()
}

// Scene is everything a host needs to draw one frame.
type Scene struct {
	Frame    uint64
	Time     float64
	Width    int
	Height   int
	View     Frame
	Heading  float64
	Position mgl64.Vec3 // body, world space
	// Drawables starts with the body, followed by attachments, terrain and
	// scenery in that order.
	Drawables []Drawable
}

// Body returns the body drawable, if present.
func (s Scene) Body() (Drawable, bool) {
	if len(s.Drawables) == 0 || s.Drawables[0].Kind != KindBody {
		return Drawable{}, false
	}
	return s.Drawables[0], true
}
