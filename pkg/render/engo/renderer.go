// pkg/render/engo/renderer.go
package engo

import (
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dronesim/pkg/render"
)

// Marker is a drawable's projected origin in window pixels.
type Marker struct {
	Name    string
	Kind    render.DrawableKind
	X, Y    float32
	Size    float32
	Visible bool
}

// markerSizes are on-screen marker edge lengths per kind.
var markerSizes = map[render.DrawableKind]float32{
	render.KindBody:       24,
	render.KindAttachment: 10,
	render.KindTerrain:    32,
	render.KindScenery:    16,
}

// Layout projects every drawable's origin through its WVP matrix. Markers
// are centred on the projected point; points outside the clip volume are
// hidden.
func Layout(scene render.Scene) []Marker {
	out := make([]Marker, len(scene.Drawables))
	for i, d := range scene.Drawables {
		size := markerSizes[d.Kind]
		x, y, ok := render.ProjectToScreen(d.WVP, mgl64.Vec3{}, scene.Width, scene.Height)
		out[i] = Marker{
			Name:    d.Name,
			Kind:    d.Kind,
			X:       float32(x) - size/2,
			Y:       float32(y) - size/2,
			Size:    size,
			Visible: ok,
		}
	}
	return out
}

type markerEntity struct {
	ecs.BasicEntity
	common.RenderComponent
	common.SpaceComponent
}

// MarkerRenderer implements render.Renderer by placing one sprite per
// drawable in an engo RenderSystem.
type MarkerRenderer struct {
	renderSystem *common.RenderSystem
	assets       *AssetManager
	entities     []*markerEntity
}

// NewMarkerRenderer draws into rs using sprites from assets.
func NewMarkerRenderer(rs *common.RenderSystem, assets *AssetManager) *MarkerRenderer {
	return &MarkerRenderer{renderSystem: rs, assets: assets}
}

// Clear implements render.Renderer. Entities are reused across frames.
func (r *MarkerRenderer) Clear() {}

// Render implements render.Renderer.
func (r *MarkerRenderer) Render(scene render.Scene) {
	markers := Layout(scene)
	r.resize(markers)
	for i, m := range markers {
		e := r.entities[i]
		e.RenderComponent.Drawable = r.assets.Sprite(m.Kind)
		e.RenderComponent.Hidden = !m.Visible
		e.RenderComponent.Scale = engo.Point{X: m.Size / markerSize, Y: m.Size / markerSize}
		e.SpaceComponent.Position = engo.Point{X: m.X, Y: m.Y}
		e.SpaceComponent.Width = m.Size
		e.SpaceComponent.Height = m.Size
	}
}

// Present implements render.Renderer. engo presents after every system has
// updated.
func (r *MarkerRenderer) Present() {}

// resize grows or shrinks the entity pool to n markers.
func (r *MarkerRenderer) resize(markers []Marker) {
	for len(r.entities) < len(markers) {
		m := markers[len(r.entities)]
		e := &markerEntity{BasicEntity: ecs.NewBasic()}
		e.RenderComponent = common.RenderComponent{
			Drawable: r.assets.Sprite(m.Kind),
			Color:    color.White,
		}
		e.RenderComponent.SetZIndex(zIndex(m.Kind))
		e.SpaceComponent = common.SpaceComponent{Width: m.Size, Height: m.Size}
		r.renderSystem.Add(&e.BasicEntity, &e.RenderComponent, &e.SpaceComponent)
		r.entities = append(r.entities, e)
	}
	for len(r.entities) > len(markers) {
		last := r.entities[len(r.entities)-1]
		r.renderSystem.Remove(last.BasicEntity)
		r.entities = r.entities[:len(r.entities)-1]
	}
}

// zIndex keeps terrain underneath and the body on top.
func zIndex(kind render.DrawableKind) float32 {
	switch kind {
	case render.KindTerrain:
		return 0
	case render.KindScenery:
		return 1
	case render.KindAttachment:
		return 3
	default:
		return 2
	}
}
