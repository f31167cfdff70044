package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/event"
	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/render"
)

func newSimulator(t *testing.T, preset string, opts ...Option) *Simulator {
	t.Helper()
	cfg, err := config.Preset(preset)
	require.NoError(t, err)
	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithMeter(noop.NewMeterProvider().Meter("test")),
	}, opts...)
	sim, err := New(cfg, opts...)
	require.NoError(t, err)
	return sim
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Camera.Stiffness = -1
	_, err := New(cfg, WithLogger(logging.Discard()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNew_InitialScene(t *testing.T) {
	sim := newSimulator(t, "classic")
	scene := sim.Scene()

	assert.Equal(t, uint64(0), scene.Frame)
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, scene.Position)
	assert.Equal(t, mgl64.Vec3{4.5, 5, 10}, scene.View.Camera)
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, scene.View.LookAt)

	body, ok := scene.Body()
	require.True(t, ok)
	assert.True(t, body.WVP.ApproxEqual(scene.View.WVP(body.World)))

	// Body plus terrain.
	require.Len(t, scene.Drawables, 2)
	assert.Equal(t, render.KindTerrain, scene.Drawables[1].Kind)
	want := mgl64.HomogRotate3DX(mgl64.DegToRad(270)).
		Mul4(mgl64.Translate3D(0, -200, 0)).
		Mul4(mgl64.Scale3D(20, 20, 20))
	assert.True(t, scene.Drawables[1].World.ApproxEqual(want))
}

func TestAdvance_InvalidDelta(t *testing.T) {
	sim := newSimulator(t, "classic")
	for _, dt := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.01} {
		_, err := sim.Advance(dt)
		assert.True(t, errors.Is(err, ErrInvalidDelta), "dt %v", dt)
	}
	assert.Equal(t, uint64(0), sim.Frames())
}

func TestAdvance_ClampsAndPublishes(t *testing.T) {
	bus := event.NewEventBus()
	var clamps []*event.ClampEvent
	bus.Subscribe(event.DeltaClamped, func(e event.Event) {
		clamps = append(clamps, e.(*event.ClampEvent))
	})
	sim := newSimulator(t, "classic", WithEventBus(bus))

	scene, err := sim.Advance(0.75)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, scene.Time, 1e-12)

	require.Len(t, clamps, 1)
	assert.Equal(t, uint64(1), clamps[0].Frame)
	assert.Equal(t, 0.75, clamps[0].Raw)
	assert.Equal(t, 0.1, clamps[0].Clamped)

	_, err = sim.Advance(0)
	require.NoError(t, err)
	assert.Len(t, clamps, 1, "zero dt is valid and not clamped")
}

func TestTick_FirstFrameUsesFallback(t *testing.T) {
	sim := newSimulator(t, "classic")
	t0 := time.Unix(500, 0)

	scene, err := sim.Tick(t0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/50, scene.Time, 1e-12)

	scene, _ = sim.Tick(t0.Add(10 * time.Millisecond))
	assert.InDelta(t, 0.03, scene.Time, 1e-9)
}

func TestHandleKey_DrivesIntentAndEvents(t *testing.T) {
	bus := event.NewEventBus()
	var keys []*event.KeyEvent
	var regimes []*event.RegimeEvent
	bus.Subscribe(event.KeyTransition, func(e event.Event) { keys = append(keys, e.(*event.KeyEvent)) })
	bus.Subscribe(event.RegimeChanged, func(e event.Event) { regimes = append(regimes, e.(*event.RegimeEvent)) })
	sim := newSimulator(t, "classic", WithEventBus(bus))

	assert.True(t, sim.HandleKey(input.KeyArrowUp, true))
	assert.False(t, sim.HandleKey(32, true))
	require.Len(t, keys, 2)
	assert.True(t, keys[0].Mapped)
	assert.False(t, keys[1].Mapped)

	_, err := sim.Advance(frame)
	require.NoError(t, err)
	require.Len(t, regimes, 1)
	assert.Equal(t, 2, regimes[0].Axis)
	assert.Equal(t, "idle", regimes[0].From)
	assert.Equal(t, "accelerate", regimes[0].To)

	snap := sim.Snapshot()
	assert.Equal(t, input.Intent{SurgeZ: -1}, snap.Intent)
	assert.Equal(t, 0.5, snap.Acceleration.Z())
}

func TestSimulator_ScriptedFlight(t *testing.T) {
	sim := newSimulator(t, "classic")
	script := input.NewScript(input.Hold(input.KeyArrowUp, 0, 2*time.Second)...)

	var elapsed time.Duration
	step := time.Second / 60
	for i := 0; i < 900; i++ {
		for _, tr := range script.Due(elapsed) {
			sim.HandleKey(tr.Code, tr.Pressed)
		}
		_, err := sim.Advance(step.Seconds())
		require.NoError(t, err)
		elapsed += step
	}

	snap := sim.Snapshot()
	assert.True(t, script.Done())
	assert.True(t, snap.Intent.IsZero())
	assert.Equal(t, 0.0, snap.Acceleration.Z())
	assert.Less(t, math.Abs(snap.Velocity.Z()), 1e-3)
	assert.Greater(t, snap.Position.Z(), 50.0)

	// The camera has settled behind and above the body.
	target := snap.Position.Add(mgl64.Vec3{0, 5, -10})
	assert.InDelta(t, 0, snap.Camera.Sub(target).Len(), 0.05)
	assert.Equal(t, snap.Camera, sim.CameraPosition())
}

func TestSimulator_ForwardFlightFixture(t *testing.T) {
	sim := newSimulator(t, "classic")
	sim.HandleKey(input.KeyArrowUp, true)
	for i := 0; i < 120; i++ {
		_, err := sim.Advance(frame)
		require.NoError(t, err)
	}

	snap := sim.Snapshot()
	assert.InDelta(t, 10, snap.Position.Y(), 1e-12)
	assert.InDelta(t, 103.36307610811596, snap.Position.Z(), 1e-9)
	assert.InDelta(t, -1.6329463072851682, snap.Velocity.Z(), 1e-9)
	assert.Equal(t, 5.0, snap.Acceleration.Z())
}

func TestSimulator_CameraSingleStepPerFrame(t *testing.T) {
	sim := newSimulator(t, "classic")
	_, err := sim.Advance(1.0 / 30)
	require.NoError(t, err)

	cam := sim.CameraPosition()
	assert.InDelta(t, 2, cam.X(), 1e-9)
	assert.InDelta(t, 95.0/9, cam.Y(), 1e-9)
	assert.InDelta(t, -10.0/9, cam.Z(), 1e-9)
}

func TestSimulator_YawAndGimbalFree(t *testing.T) {
	bus := event.NewEventBus()
	gimbal := 0
	bus.Subscribe(event.GimbalLock, func(e event.Event) { gimbal++ })
	sim := newSimulator(t, "classic", WithEventBus(bus))

	sim.HandleKey(input.KeyArrowLeft, true)
	for i := 0; i < 60; i++ {
		_, err := sim.Advance(frame)
		require.NoError(t, err)
	}
	sim.HandleKey(input.KeyArrowLeft, false)

	snap := sim.Snapshot()
	assert.InDelta(t, 108, snap.Heading, 1e-6)
	assert.InDelta(t, 108, snap.Attitude.Yaw, 1e-6)
	assert.Equal(t, 0, gimbal)

	// No yaw intent leaves the heading alone.
	sim.Advance(frame)
	assert.Equal(t, snap.Heading, sim.Snapshot().Heading)
}

func TestSimulator_DronesimAttachments(t *testing.T) {
	sim := newSimulator(t, "dronesim")
	scene := sim.Scene()

	// body, 3 attachments, terrain, 3 scenery props
	require.Len(t, scene.Drawables, 8)
	assert.Equal(t, "propeller-right", scene.Drawables[1].Name)
	assert.Equal(t, render.KindAttachment, scene.Drawables[3].Kind)
	assert.Equal(t, render.KindScenery, scene.Drawables[7].Kind)

	body := scene.Drawables[0]
	assert.InDelta(t, 2, body.World.Col(0).Vec3().Len(), 1e-12, "body drawable is scaled")

	// The sky box follows translation only.
	sky := scene.Drawables[3]
	assert.Equal(t, scene.Position, sky.Origin())

	sim.Advance(0.05)
	st := sim.State()
	assert.Equal(t, uint64(1), st.Frame)
	assert.InDelta(t, 0, sim.Scene().Drawables[1].Origin().Sub(
		body.World.Mul4x1(mgl64.Vec4{-0.255, 0, 0, 1}).Vec3()).Len(), 1e-9)
}

func TestAttachment_Advance(t *testing.T) {
	a := NewAttachment(config.AttachmentConfig{Kind: config.AttachSpinner, SpinRate: -1000})
	a.Advance(0.1)
	assert.InDelta(t, 260, a.Angle, 1e-9)

	f := NewAttachment(config.AttachmentConfig{Kind: config.AttachFollower, SpinRate: 1000})
	f.Advance(0.1)
	assert.Equal(t, 0.0, f.Angle)
}

func TestResize(t *testing.T) {
	sim := newSimulator(t, "classic")
	before := sim.Scene().View.Projection

	sim.Resize(0, 100)
	sim.Resize(100, -1)
	assert.Equal(t, before, sim.Scene().View.Projection)

	sim.Resize(1600, 400)
	scene := sim.Scene()
	assert.Equal(t, 1600, scene.Width)
	assert.InDelta(t, scene.View.Projection.At(1, 1)/4, scene.View.Projection.At(0, 0), 1e-12)
}

func TestSimulator_Lifecycle(t *testing.T) {
	bus := event.NewEventBus()
	var got []*event.LifecycleEvent
	h := func(e event.Event) { got = append(got, e.(*event.LifecycleEvent)) }
	bus.Subscribe(event.SimulationStarted, h)
	bus.Subscribe(event.SimulationStopped, h)

	ctx := logging.WithSessionID(context.Background(), "flight-1")
	sim := newSimulator(t, "classic", WithEventBus(bus), WithContext(ctx))

	sim.Start()
	sim.Advance(frame)
	sim.Advance(frame)
	sim.Stop()

	require.Len(t, got, 2)
	assert.Equal(t, event.SimulationStarted, got[0].GetType())
	assert.Equal(t, "flight-1", got[1].SessionID)
	assert.Equal(t, uint64(2), got[1].Frames)
	assert.Same(t, bus, sim.Events())
	assert.Equal(t, "flight-1", logging.GetSessionID(sim.Context()))
}

func TestSimulator_LastFrameAt(t *testing.T) {
	now := time.Unix(42, 0)
	sim := newSimulator(t, "classic", WithClock(func() time.Time { return now }))

	assert.True(t, sim.LastFrameAt().IsZero())
	sim.Advance(frame)
	assert.Equal(t, now, sim.LastFrameAt())
}

func TestSimulator_ConcurrentInputAndFrames(t *testing.T) {
	sim := newSimulator(t, "classic")
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			sim.Advance(frame)
		}
	}()
	for _, code := range []int{input.KeyW, input.KeyQ, input.KeyArrowLeft} {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sim.HandleKey(code, true)
				_ = sim.Snapshot()
				sim.HandleKey(code, false)
			}
		}(code)
	}
	wg.Wait()

	assert.Equal(t, uint64(200), sim.Frames())
	assert.True(t, sim.Snapshot().Intent.IsZero())
	assert.True(t, finite(sim.Snapshot().Position))
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
