// pkg/engine/simulator.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel/metric"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/event"
	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/physics"
	"github.com/opd-ai/go-dronesim/pkg/render"
)

// ErrInvalidDelta is returned for NaN, infinite or negative frame deltas.
var ErrInvalidDelta = errors.New("invalid frame delta")

// Snapshot is a read-only copy of the values hosts and telemetry care about.
type Snapshot struct {
	Frame        uint64
	Time         float64
	Position     mgl64.Vec3
	Heading      float64
	Attitude     physics.EulerAngles
	Velocity     mgl64.Vec3 // body frame, per axis
	Acceleration mgl64.Vec3
	Regimes      [3]physics.Regime
	Camera       mgl64.Vec3
	Intent       input.Intent
}

// Simulator owns a State and serializes every access to it behind one
// frame-exclusive lock. Key events may arrive from any goroutine.
type Simulator struct {
	mu deadlock.Mutex

	state       State
	input       *input.Aggregator
	clock       *Clock
	lens        render.Lens
	width       int
	height      int
	bodyScale   float64
	attachments []*Attachment
	statics     []render.Drawable
	scene       render.Scene
	lastAdvance time.Time

	ctx     context.Context
	bus     *event.Bus
	logger  *logging.Logger
	metrics *metrics
	now     func() time.Time
	keys    input.KeyMap
	meter   metric.Meter
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithEventBus publishes simulation events on bus.
func WithEventBus(bus *event.Bus) Option {
	return func(s *Simulator) { s.bus = bus }
}

// WithLogger replaces the default stdout logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithMeter records metrics on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Simulator) { s.meter = m }
}

// WithKeyMap replaces the default key bindings.
func WithKeyMap(k input.KeyMap) Option {
	return func(s *Simulator) { s.keys = k }
}

// WithClock overrides the wall clock used for health reporting.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithContext sets the context used for logging and metrics. A session id
// is attached if it carries none.
func WithContext(ctx context.Context) Option {
	return func(s *Simulator) { s.ctx = ctx }
}

// New builds a simulator from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		ctx: context.Background(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger()
	}
	if s.bus == nil {
		s.bus = event.NewEventBus()
	}
	if s.meter == nil {
		s.meter = meter()
	}
	if logging.GetSessionID(s.ctx) == "" {
		s.ctx = logging.WithSessionID(s.ctx, "")
	}

	m, err := newMetrics(s.meter)
	if err != nil {
		return nil, logging.WrapError(err, "initializing metrics")
	}
	s.metrics = m

	s.input = input.NewAggregator(s.keys)
	s.clock = NewClock(cfg.Clock.FirstFrame, cfg.Clock.MaxDelta)
	s.lens = render.Lens{FOV: cfg.Projection.FOV, Near: cfg.Projection.Near, Far: cfg.Projection.Far}
	s.width, s.height = cfg.Viewport.Width, cfg.Viewport.Height
	s.bodyScale = cfg.Body.Scale

	camera := physics.NewChaseCamera(cfg.Camera.Position, cfg.Camera.Stiffness, cfg.Camera.Offset)
	camera.MaxSubstep = cfg.Camera.MaxSubstep
	s.state = State{
		Profiles:    cfg.Axes.Profiles(),
		Orientation: physics.Orientation{YawGain: cfg.YawGain},
		Pose:        physics.NewBodyPose(cfg.Body.Position, cfg.Body.Heading),
		Camera:      *camera,
	}

	for _, a := range cfg.Attachments {
		s.attachments = append(s.attachments, NewAttachment(a))
	}
	if cfg.Terrain.Enabled {
		s.statics = append(s.statics, render.Drawable{
			Name:  "terrain",
			Kind:  render.KindTerrain,
			World: TerrainMatrix(cfg.Terrain),
		})
	}
	for _, sc := range cfg.Scenery {
		s.statics = append(s.statics, render.Drawable{
			Name:  sc.Name,
			Kind:  render.KindScenery,
			World: SceneryMatrix(sc),
		})
	}

	s.scene = s.assemble()
	return s, nil
}

// Start announces the session. It does not start any goroutine; hosts
// drive the simulator with Tick or Advance.
func (s *Simulator) Start() {
	id := logging.GetSessionID(s.ctx)
	s.logger.Info(s.ctx, "simulation started", "frame", s.Frames())
	s.bus.Publish(event.NewLifecycleEvent(event.SimulationStarted, s, id, s.Frames()))
}

// Stop announces the end of the session.
func (s *Simulator) Stop() {
	frames := s.Frames()
	s.logger.Info(s.ctx, "simulation stopped", "frames", frames)
	s.bus.Publish(event.NewLifecycleEvent(event.SimulationStopped, s, logging.GetSessionID(s.ctx), frames))
}

// Events returns the bus the simulator publishes on.
func (s *Simulator) Events() *event.Bus {
	return s.bus
}

// Context returns the simulator's session context.
func (s *Simulator) Context() context.Context {
	return s.ctx
}

// HandleKey feeds a raw key transition into the intent aggregator. It is
// safe to call concurrently with Tick; the intent is sampled once per frame.
func (s *Simulator) HandleKey(code int, pressed bool) bool {
	mapped := s.input.OnKeyTransition(code, pressed)
	s.bus.Publish(event.NewKeyEvent(s, code, pressed, mapped))
	return mapped
}

// Input exposes the aggregator for hosts that work with roles directly.
func (s *Simulator) Input() *input.Aggregator {
	return s.input
}

// Resize updates the viewport. Non-positive sizes are ignored.
func (s *Simulator) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.scene = s.assemble()
}

// Tick derives dt from the host timestamp, clamps it and advances one frame.
func (s *Simulator) Tick(now time.Time) (render.Scene, error) {
	s.mu.Lock()
	dt, raw := s.clock.Tick(now)
	scene, pending := s.stepLocked(dt, raw)
	s.mu.Unlock()

	s.publish(pending)
	return scene, nil
}

// Advance steps by an explicit dt, clamped like a host frame.
func (s *Simulator) Advance(dt float64) (render.Scene, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return render.Scene{}, fmt.Errorf("%w: %v", ErrInvalidDelta, dt)
	}

	s.mu.Lock()
	scene, pending := s.stepLocked(s.clock.Clamp(dt), dt)
	s.mu.Unlock()

	s.publish(pending)
	return scene, nil
}

// stepLocked runs one frame. Events are returned rather than published so
// handlers never run under the frame lock.
func (s *Simulator) stepLocked(dt, raw float64) (render.Scene, []event.Event) {
	intent := s.input.Intent()
	res := Step(&s.state, intent, dt)
	for _, a := range s.attachments {
		a.Advance(dt)
	}
	s.scene = s.assemble()
	s.lastAdvance = s.now()

	frame := s.state.Frame
	clamped := raw > dt
	s.metrics.recordFrame(s.ctx, dt, clamped, res)

	var pending []event.Event
	if clamped {
		pending = append(pending, event.NewClampEvent(s, frame, raw, dt))
	}
	for i, changed := range res.Changed {
		if changed {
			pending = append(pending, event.NewRegimeEvent(s, frame, i, res.Previous[i].String(), res.Regimes[i].String()))
		}
	}
	if res.GimbalLock {
		pending = append(pending, event.NewGimbalEvent(s, frame, res.Attitude.Pitch))
	}
	return s.scene, pending
}

func (s *Simulator) publish(events []event.Event) {
	for _, e := range events {
		switch ev := e.(type) {
		case *event.ClampEvent:
			s.logger.Debug(s.ctx, "frame delta clamped", "frame", ev.Frame, "raw", ev.Raw, "dt", ev.Clamped)
		case *event.GimbalEvent:
			s.logger.Warn(s.ctx, "attitude extraction hit gimbal lock", "frame", ev.Frame, "pitch", ev.Pitch)
		}
		s.bus.Publish(e)
	}
}

// assemble builds the scene for the current state. Callers hold mu.
func (s *Simulator) assemble() render.Scene {
	pose := s.state.Pose
	world := pose.WorldMatrix()
	body := world.Mul4(mgl64.Scale3D(s.bodyScale, s.bodyScale, s.bodyScale))

	aspect := 1.0
	if s.width > 0 && s.height > 0 {
		aspect = float64(s.width) / float64(s.height)
	}
	view := render.Assemble(s.lens, s.state.Camera.Position, pose.Position, aspect)

	drawables := make([]render.Drawable, 0, 1+len(s.attachments)+len(s.statics))
	drawables = append(drawables, render.Drawable{
		Name:  "body",
		Kind:  render.KindBody,
		World: body,
		WVP:   view.WVP(body),
	})
	for _, a := range s.attachments {
		w := a.World(body)
		drawables = append(drawables, render.Drawable{
			Name:  a.Name,
			Kind:  render.KindAttachment,
			World: w,
			WVP:   view.WVP(w),
		})
	}
	for _, d := range s.statics {
		d.WVP = view.WVP(d.World)
		drawables = append(drawables, d)
	}

	return render.Scene{
		Frame:     s.state.Frame,
		Time:      s.state.Time,
		Width:     s.width,
		Height:    s.height,
		View:      view,
		Heading:   pose.Heading,
		Position:  pose.Position,
		Drawables: drawables,
	}
}

// Scene returns the most recently assembled scene.
func (s *Simulator) Scene() render.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// CameraPosition returns the chase camera's world position.
func (s *Simulator) CameraPosition() mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Camera.Position
}

// Snapshot copies the values exposed to telemetry and overlays.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	snap := Snapshot{
		Frame:    st.Frame,
		Time:     st.Time,
		Position: st.Pose.Position,
		Heading:  st.Pose.Heading,
		Attitude: st.Pose.LastAttitude,
		Velocity: st.LocalVelocity(),
		Camera:   st.Camera.Position,
		Intent:   s.input.Intent(),
	}
	for i := range st.Axes {
		snap.Acceleration[i] = st.Axes[i].Acceleration
		snap.Regimes[i] = st.Axes[i].Regime()
	}
	return snap
}

// State returns a copy of the full simulation state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames returns the number of frames stepped so far.
func (s *Simulator) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Frame
}

// LastFrameAt returns the wall-clock time of the most recent step, or the
// zero time before the first one.
func (s *Simulator) LastFrameAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAdvance
}
