// pkg/render/engo/flight.go
package engo

import (
	"context"
	"time"

	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/render"
)

// Stepper advances a simulation and returns the new scene. Tick derives the
// delta from a host timestamp; Advance takes it directly.
type Stepper interface {
	Tick(now time.Time) (render.Scene, error)
	Advance(dt float64) (render.Scene, error)
}

// FlightSystem steps the simulation once per engo frame and hands the scene
// to a renderer.
type FlightSystem struct {
	sim      Stepper
	renderer render.Renderer
	logger   *logging.Logger
	onFrame  func(render.Scene)
	failures int
	started  bool
	now      func() time.Time
}

// NewFlightSystem drives sim and draws with r. onFrame, if set, sees every
// scene after it is rendered.
func NewFlightSystem(sim Stepper, r render.Renderer, logger *logging.Logger, onFrame func(render.Scene)) *FlightSystem {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FlightSystem{sim: sim, renderer: r, logger: logger, onFrame: onFrame, now: time.Now}
}

// Remove satisfies ecs.System.
func (fs *FlightSystem) Remove(ecs.BasicEntity) {}

// Update advances by engo's frame delta. The first frame has no previous
// timestamp and runs through the simulator clock's first-frame delta
// instead. A rejected delta skips the frame.
func (fs *FlightSystem) Update(dt float32) {
	var (
		scene render.Scene
		err   error
	)
	if !fs.started {
		fs.started = true
		scene, err = fs.sim.Tick(fs.now())
	} else {
		scene, err = fs.sim.Advance(float64(dt))
	}
	if err != nil {
		fs.failures++
		fs.logger.Warn(context.Background(), "skipping frame", "dt", dt, "error", err)
		return
	}
	fs.renderer.Clear()
	fs.renderer.Render(scene)
	fs.renderer.Present()
	if fs.onFrame != nil {
		fs.onFrame(scene)
	}
}

// Skipped returns the number of frames dropped because of invalid deltas.
func (fs *FlightSystem) Skipped() int {
	return fs.failures
}
