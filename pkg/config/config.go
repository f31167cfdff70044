// pkg/config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/opd-ai/go-dronesim/pkg/physics"
)

// EnvPrefix is prepended to every environment override, e.g.
// DRONESIM_CAMERA_STIFFNESS=800.
const EnvPrefix = "DRONESIM"

// ErrUnknownPreset is returned for preset names that are not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete simulator configuration.
type Config struct {
	Preset      string             `json:"preset" mapstructure:"preset"`
	Axes        AxesConfig         `json:"axes" mapstructure:"axes"`
	YawGain     float64            `json:"yawGain" mapstructure:"yawGain"`
	Body        BodyConfig         `json:"body" mapstructure:"body"`
	Camera      CameraConfig       `json:"camera" mapstructure:"camera"`
	Projection  ProjectionConfig   `json:"projection" mapstructure:"projection"`
	Viewport    ViewportConfig     `json:"viewport" mapstructure:"viewport"`
	Terrain     TerrainConfig      `json:"terrain" mapstructure:"terrain"`
	Attachments []AttachmentConfig `json:"attachments" mapstructure:"attachments"`
	Scenery     []SceneryConfig    `json:"scenery" mapstructure:"scenery"`
	Clock       ClockConfig        `json:"clock" mapstructure:"clock"`
	Telemetry   TelemetryConfig    `json:"telemetry" mapstructure:"telemetry"`
	Health      HealthConfig       `json:"health" mapstructure:"health"`
}

// AxesConfig holds the throttle profile of each translation axis.
type AxesConfig struct {
	X physics.AxisProfile `json:"x" mapstructure:"x"`
	Y physics.AxisProfile `json:"y" mapstructure:"y"`
	Z physics.AxisProfile `json:"z" mapstructure:"z"`
}

// Profiles returns the profiles in axis order.
func (a AxesConfig) Profiles() [3]physics.AxisProfile {
	return [3]physics.AxisProfile{a.X, a.Y, a.Z}
}

// BodyConfig places the flying body.
type BodyConfig struct {
	Position mgl64.Vec3 `json:"position" mapstructure:"position"`
	Heading  float64    `json:"heading" mapstructure:"heading"`
	// Scale only affects the drawable; motion uses the unscaled pose.
	Scale float64 `json:"scale" mapstructure:"scale"`
}

// CameraConfig tunes the chase camera.
type CameraConfig struct {
	Position  mgl64.Vec3 `json:"position" mapstructure:"position"`
	Offset    mgl64.Vec3 `json:"offset" mapstructure:"offset"`
	Stiffness float64    `json:"stiffness" mapstructure:"stiffness"`
	// MaxSubstep opts into splitting long frames; zero keeps one Euler step per frame.
	MaxSubstep float64 `json:"maxSubstep" mapstructure:"maxSubstep"`
}

// ProjectionConfig describes the perspective lens.
type ProjectionConfig struct {
	FOV  float64 `json:"fov" mapstructure:"fov"` // vertical, degrees
	Near float64 `json:"near" mapstructure:"near"`
	Far  float64 `json:"far" mapstructure:"far"`
}

// ViewportConfig is the initial drawable surface size in pixels.
type ViewportConfig struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// TerrainConfig places the static ground mesh.
type TerrainConfig struct {
	Enabled     bool       `json:"enabled" mapstructure:"enabled"`
	Translation mgl64.Vec3 `json:"translation" mapstructure:"translation"`
	RotationX   float64    `json:"rotationX" mapstructure:"rotationX"`
	Scale       float64    `json:"scale" mapstructure:"scale"`
	// RotateFirst composes Rx·T·S instead of T·Rx·S.
	RotateFirst bool `json:"rotateFirst" mapstructure:"rotateFirst"`
}

// Attachment kinds.
const (
	AttachSpinner  = "spinner"
	AttachFollower = "follower"
)

// AttachmentConfig describes a drawable bound to the body.
type AttachmentConfig struct {
	Name     string     `json:"name" mapstructure:"name"`
	Kind     string     `json:"kind" mapstructure:"kind"`
	Offset   mgl64.Vec3 `json:"offset" mapstructure:"offset"`
	SpinRate float64    `json:"spinRate" mapstructure:"spinRate"` // degrees per second
}

// SceneryConfig places a static drawable in the world.
type SceneryConfig struct {
	Name     string     `json:"name" mapstructure:"name"`
	Position mgl64.Vec3 `json:"position" mapstructure:"position"`
	Scale    float64    `json:"scale" mapstructure:"scale"`
}

// ClockConfig bounds the per-frame delta.
type ClockConfig struct {
	FirstFrame float64 `json:"firstFrame" mapstructure:"firstFrame"` // seconds
	MaxDelta   float64 `json:"maxDelta" mapstructure:"maxDelta"`     // seconds
}

// TelemetryConfig controls pose publishing. WebSocketAddr serves /ws and
// /api/pose when non-empty.
type TelemetryConfig struct {
	IntervalMS    int           `json:"intervalMs" mapstructure:"intervalMs"`
	MQTT          MQTTConfig    `json:"mqtt" mapstructure:"mqtt"`
	WebSocketAddr string        `json:"websocketAddr" mapstructure:"websocketAddr"`
	Breaker       BreakerConfig `json:"breaker" mapstructure:"breaker"`

	// ConnectsPerMinute caps WebSocket connection attempts per remote
	// host; 0 disables the cap.
	ConnectsPerMinute int `json:"connectsPerMinute" mapstructure:"connectsPerMinute"`
}

// BreakerConfig tunes the circuit breaker guarding broker publishes.
type BreakerConfig struct {
	MaxRequests         uint32 `json:"maxRequests" mapstructure:"maxRequests"`
	IntervalMS          int    `json:"intervalMs" mapstructure:"intervalMs"`
	TimeoutMS           int    `json:"timeoutMs" mapstructure:"timeoutMs"`
	MaxConsecutiveFails uint32 `json:"maxConsecutiveFails" mapstructure:"maxConsecutiveFails"`
}

// MQTTConfig configures the broker publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	ClientID string `json:"clientId" mapstructure:"clientId"`
	Topic    string `json:"topic" mapstructure:"topic"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Retained bool   `json:"retained" mapstructure:"retained"`
}

// HealthConfig controls the health endpoints.
type HealthConfig struct {
	Addr         string `json:"addr" mapstructure:"addr"`
	StaleAfterMS int    `json:"staleAfterMs" mapstructure:"staleAfterMs"`
}

// DefaultConfig returns the classic preset.
func DefaultConfig() *Config {
	return classic()
}

func defaultAxes() AxesConfig {
	p := physics.DefaultAxisProfile()
	return AxesConfig{X: p, Y: p, Z: p}
}

func classic() *Config {
	return &Config{
		Preset:  "classic",
		Axes:    defaultAxes(),
		YawGain: 108,
		Body: BodyConfig{
			Position: mgl64.Vec3{0, 10, 0},
			Scale:    1,
		},
		Camera: CameraConfig{
			Position:  mgl64.Vec3{4.5, 5, 10},
			Offset:    mgl64.Vec3{0, 5, -10},
			Stiffness: 500,
		},
		Projection: ProjectionConfig{FOV: 60, Near: 0.1, Far: 100},
		Viewport:   ViewportConfig{Width: 800, Height: 600},
		Terrain: TerrainConfig{
			Enabled:     true,
			Translation: mgl64.Vec3{0, -200, 0},
			RotationX:   270,
			Scale:       20,
			RotateFirst: true,
		},
		Clock: ClockConfig{FirstFrame: 1.0 / 50, MaxDelta: 0.1},
		Telemetry: TelemetryConfig{
			IntervalMS: 100,
			MQTT: MQTTConfig{
				ClientID: "dronesim",
				Topic:    "dronesim/pose",
				Retained: true,
			},
			Breaker: BreakerConfig{
				MaxRequests:         1,
				IntervalMS:          60000,
				TimeoutMS:           30000,
				MaxConsecutiveFails: 5,
			},
			ConnectsPerMinute: 30,
		},
		Health: HealthConfig{StaleAfterMS: 2000},
	}
}

func dronesim() *Config {
	c := classic()
	c.Preset = "dronesim"
	c.Body = BodyConfig{Position: mgl64.Vec3{-10.7, -32, 5.61}, Scale: 2}
	c.Camera.Offset = mgl64.Vec3{0, 1, -2.2}
	c.Camera.Position = c.Body.Position.Add(c.Camera.Offset)
	c.Projection.Far = 300
	c.Terrain = TerrainConfig{
		Enabled:     true,
		Translation: mgl64.Vec3{-200, -80, 600},
		RotationX:   270,
		Scale:       1,
	}
	c.Attachments = []AttachmentConfig{
		{Name: "propeller-right", Kind: AttachSpinner, Offset: mgl64.Vec3{-0.255, 0, 0}, SpinRate: -1000},
		{Name: "propeller-left", Kind: AttachSpinner, Offset: mgl64.Vec3{0.255, 0, 0}, SpinRate: 1000},
		{Name: "skybox", Kind: AttachFollower},
	}
	c.Scenery = []SceneryConfig{
		{Name: "cottage", Position: mgl64.Vec3{-50, -35.5, 2}, Scale: 1},
		{Name: "tree", Position: mgl64.Vec3{-60.997, -34.5, 12.507}, Scale: 5},
		{Name: "sphere", Position: mgl64.Vec3{-50, -30, 2}, Scale: 1},
	}
	return c
}

var presets = map[string]func() *Config{
	"classic":  classic,
	"dronesim": dronesim,
}

// Preset returns a fresh copy of the named preset.
func Preset(name string) (*Config, error) {
	build, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	return build(), nil
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadConfig reads a JSON file on top of the preset it names (classic when
// absent) and then applies DRONESIM_* environment overrides. An empty path
// loads the preset with environment overrides only.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigPreset(path, "")
}

// LoadConfigPreset is LoadConfig with an explicit preset that wins over both
// the environment and the file's "preset" key.
func LoadConfigPreset(path, preset string) (*Config, error) {
	presetName := preset
	if presetName == "" {
		presetName = os.Getenv(EnvPrefix + "_PRESET")
	}
	var file []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var head struct {
			Preset string `json:"preset"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if presetName == "" {
			presetName = head.Preset
		}
		file = data
	}
	if presetName == "" {
		presetName = "classic"
	}
	return load(presetName, file)
}

func load(presetName string, file []byte) (*Config, error) {
	base, err := Preset(presetName)
	if err != nil {
		return nil, err
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preset: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(baseJSON)); err != nil {
		return nil, fmt.Errorf("failed to load preset: %w", err)
	}
	if len(file) > 0 {
		if err := v.MergeConfig(bytes.NewReader(file)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Preset = base.Preset
	return &cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the invariants the flight model relies on.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for i, p := range c.Axes.Profiles() {
		name := string("xyz"[i])
		if p.FrictionLogRate >= 0 {
			add("axes.%s.frictionLogRate must be negative", name)
		}
		if p.SteadyAccel < 0 || p.MaxAccel < p.SteadyAccel {
			add("axes.%s: need 0 <= steadyAccel <= maxAccel", name)
		}
		if p.SteadyBrake < 0 || p.MaxBrake < p.SteadyBrake {
			add("axes.%s: need 0 <= steadyBrake <= maxBrake", name)
		}
		if p.AccelRampUp < 0 || p.AccelRampDown <= 0 || p.BrakeRampUp < 0 || p.BrakeRampDown <= 0 {
			add("axes.%s: ramp rates must be positive", name)
		}
	}
	if c.Camera.Stiffness <= 0 {
		add("camera.stiffness must be positive")
	}
	if c.Camera.MaxSubstep < 0 {
		add("camera.maxSubstep must not be negative")
	}
	if c.Projection.FOV <= 0 || c.Projection.FOV >= 180 {
		add("projection.fov must be in (0, 180)")
	}
	if c.Projection.Near <= 0 || c.Projection.Far <= c.Projection.Near {
		add("projection: need 0 < near < far")
	}
	if c.Body.Scale <= 0 {
		add("body.scale must be positive")
	}
	if c.Clock.FirstFrame <= 0 || c.Clock.MaxDelta <= 0 {
		add("clock: firstFrame and maxDelta must be positive")
	}
	for _, a := range c.Attachments {
		if a.Kind != AttachSpinner && a.Kind != AttachFollower {
			add("attachment %q: unknown kind %q", a.Name, a.Kind)
		}
	}
	if c.Telemetry.IntervalMS < 0 {
		add("telemetry.intervalMs must not be negative")
	}
	if c.Telemetry.ConnectsPerMinute < 0 {
		add("telemetry.connectsPerMinute must not be negative")
	}
	if c.Telemetry.Breaker.MaxConsecutiveFails == 0 {
		add("telemetry.breaker.maxConsecutiveFails must be positive")
	}
	if c.Telemetry.MQTT.Broker != "" && c.Telemetry.MQTT.Topic == "" {
		add("telemetry.mqtt.topic is required with a broker")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
