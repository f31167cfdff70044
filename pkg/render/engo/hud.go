// pkg/render/engo/hud.go
package engo

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-dronesim/pkg/engine"
	"github.com/opd-ai/go-dronesim/pkg/input"
)

// SnapshotSource supplies the state the HUD displays.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// StatusLines formats a snapshot for the HUD.
func StatusLines(s engine.Snapshot) []string {
	return []string{
		fmt.Sprintf("frame %d  t=%.2fs", s.Frame, s.Time),
		fmt.Sprintf("pos  %7.2f %7.2f %7.2f", s.Position.X(), s.Position.Y(), s.Position.Z()),
		fmt.Sprintf("hdg  %6.1f  pitch %5.1f  roll %5.1f", s.Heading, s.Attitude.Pitch, s.Attitude.Roll),
		fmt.Sprintf("vel  %6.2f %6.2f %6.2f", s.Velocity.X(), s.Velocity.Y(), s.Velocity.Z()),
		fmt.Sprintf("axes %s/%s/%s", s.Regimes[0], s.Regimes[1], s.Regimes[2]),
		fmt.Sprintf("in   %+.0f %+.0f %+.0f  yaw %+.0f",
			s.Intent.Component(input.AxisSurgeX), s.Intent.Component(input.AxisSurgeY),
			s.Intent.Component(input.AxisSurgeZ), s.Intent.Component(input.AxisYaw)),
	}
}

type hudEntity struct {
	ecs.BasicEntity
	common.RenderComponent
	common.SpaceComponent
}

// HUDSystem draws a text panel in the top left corner.
type HUDSystem struct {
	src   SnapshotSource
	font  *common.Font
	panel *hudEntity
	text  string
}

// NewHUDSystem shows src using font. A nil font disables the panel.
func NewHUDSystem(src SnapshotSource, font *common.Font) *HUDSystem {
	return &HUDSystem{src: src, font: font}
}

// New is called by the ecs world when the system is added.
func (hud *HUDSystem) New(w *ecs.World) {
	if hud.font == nil {
		return
	}
	hud.panel = &hudEntity{BasicEntity: ecs.NewBasic()}
	hud.panel.RenderComponent = common.RenderComponent{
		Drawable: common.Text{Font: hud.font, LineSpacing: 0.2},
		Color:    color.White,
	}
	hud.panel.RenderComponent.SetShader(common.TextHUDShader)
	hud.panel.RenderComponent.SetZIndex(10)
	hud.panel.SpaceComponent = common.SpaceComponent{Position: engo.Point{X: 10, Y: 10}}

	for _, sys := range w.Systems() {
		if rs, ok := sys.(*common.RenderSystem); ok {
			rs.Add(&hud.panel.BasicEntity, &hud.panel.RenderComponent, &hud.panel.SpaceComponent)
		}
	}
}

// Remove satisfies ecs.System.
func (hud *HUDSystem) Remove(ecs.BasicEntity) {}

// Update refreshes the panel text when it changed.
func (hud *HUDSystem) Update(dt float32) {
	if hud.panel == nil {
		return
	}
	text := strings.Join(StatusLines(hud.src.Snapshot()), "\n")
	if text == hud.text {
		return
	}
	hud.text = text
	hud.panel.RenderComponent.Drawable = common.Text{Font: hud.font, Text: text, LineSpacing: 0.2}
}
