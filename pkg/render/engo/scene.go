// pkg/render/engo/scene.go
package engo

import (
	"context"
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-dronesim/pkg/engine"
	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/render"
)

// FlightScene is the engo scene hosting one simulator.
type FlightScene struct {
	sim     *engine.Simulator
	logger  *logging.Logger
	onFrame func(render.Scene)

	assets *AssetManager
	input  *InputSystem
	flight *FlightSystem
}

// NewFlightScene wraps sim. onFrame is called after every rendered frame,
// for example to feed telemetry.
func NewFlightScene(sim *engine.Simulator, logger *logging.Logger, onFrame func(render.Scene)) *FlightScene {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &FlightScene{sim: sim, logger: logger, onFrame: onFrame, assets: NewAssetManager()}
}

// Type returns the scene type (required by Engo)
func (scene *FlightScene) Type() string {
	return "FlightScene"
}

// Preload generates textures and the HUD font (required by Engo)
func (scene *FlightScene) Preload() {
	if err := scene.assets.LoadAssets(); err != nil {
		scene.logger.Error(scene.sim.Context(), "loading assets", err)
	}
}

// Setup wires the systems into the world (required by Engo)
func (scene *FlightScene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	common.SetBackground(color.RGBA{R: 20, G: 24, B: 32, A: 255})

	rs := &common.RenderSystem{}
	world.AddSystem(rs)

	scene.input = NewInputSystem(scene.sim, scene.sim.Input().KeyMap())
	scene.input.Register()
	world.AddSystem(scene.input)

	renderer := NewMarkerRenderer(rs, scene.assets)
	scene.flight = NewFlightSystem(scene.sim, renderer, scene.logger, scene.onFrame)
	world.AddSystem(scene.flight)
	world.AddSystem(NewHUDSystem(scene.sim, scene.assets.Font()))

	scene.sim.Resize(int(engo.WindowWidth()), int(engo.WindowHeight()))
	engo.Mailbox.Listen(engo.WindowResizeMessage{}.Type(), func(msg engo.Message) {
		if m, ok := msg.(engo.WindowResizeMessage); ok {
			scene.sim.Resize(m.NewWidth, m.NewHeight)
		}
	})

	scene.sim.Start()
}

// Exit ends the session when the window closes (required by Engo)
func (scene *FlightScene) Exit() {
	scene.sim.Stop()
	scene.logger.Info(context.Background(), "window closed", "skipped_frames", scene.flight.Skipped())
	engo.Exit()
}
