package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects the camera policy for the main phase.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeFollow Mode = "follow"
)

// Config holds every knob of one render. Immutable for the duration of a
// render session.
type Config struct {
	Mode Mode `yaml:"mode"`

	FPS             int     `yaml:"fps"`
	DurationSeconds float64 `yaml:"duration"`
	SpeedKmh        float64 `yaml:"speed"` // used when duration is 0
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`

	IntroSeconds     float64 `yaml:"intro"`
	OutroSeconds     float64 `yaml:"outro"`
	OrbitDegrees     float64 `yaml:"orbit_degrees"`
	ZoomOutFactor    float64 `yaml:"zoom_out_factor"`
	PitchDropDegrees float64 `yaml:"pitch_drop_degrees"`

	TargetPitch float64 `yaml:"pitch"`
	MaxZoom     float64 `yaml:"max_zoom"`
	LookaheadM  float64 `yaml:"lookahead"` // auto-mode forward window

	FollowDistanceM          float64 `yaml:"follow_distance"`
	FollowPitchDegrees       float64 `yaml:"follow_pitch"`
	FollowLookaheadM         float64 `yaml:"follow_lookahead"`
	FollowBearingSensitivity float64 `yaml:"follow_bearing_sensitivity"`
	FollowPanningSensitivity float64 `yaml:"follow_panning_sensitivity"`
	FollowSmoothingSeconds   float64 `yaml:"follow_smoothing"`

	RouteColor     string  `yaml:"route_color"`
	RouteWidth     float64 `yaml:"route_width"`
	RouteSmooth    int     `yaml:"route_smooth"` // Chaikin iterations
	ResampleStepM  float64 `yaml:"resample_step"`
	ShowMarkers    bool    `yaml:"markers"`
	ShowOutline    bool    `yaml:"outline"`
	TerrainEnabled bool    `yaml:"terrain"`

	FrameTimeoutMs     int    `yaml:"frame_timeout_ms"`
	FrameWaitSignal    string `yaml:"frame_wait"` // "render-idle" | "render" | "none"
	FrameSettleDelayMs int    `yaml:"frame_settle_delay_ms"`

	Quality    string `yaml:"quality"` // preview | final
	CRF        int    `yaml:"crf"`
	Preset     string `yaml:"preset"`
	Encoder    string `yaml:"-"` // detected, not configured
	OutputPath string `yaml:"-"`
	FramesDir  string `yaml:"-"`
	KeepFrames bool   `yaml:"keep_frames"`
	HUD        bool   `yaml:"hud"`
}

// Default returns the configuration the CLI starts from before flags and
// profile files are applied.
func Default() Config {
	return Config{
		Mode:                     ModeAuto,
		FPS:                      30,
		SpeedKmh:                 25.0,
		Width:                    1920,
		Height:                   1080,
		IntroSeconds:             3.0,
		OutroSeconds:             4.0,
		OrbitDegrees:             90.0,
		ZoomOutFactor:            0.72,
		PitchDropDegrees:         35.0,
		TargetPitch:              60.0,
		MaxZoom:                  14.0,
		LookaheadM:               320.0,
		FollowDistanceM:          260.0,
		FollowPitchDegrees:       62.0,
		FollowLookaheadM:         120.0,
		FollowBearingSensitivity: 1.0,
		FollowPanningSensitivity: 1.0,
		FollowSmoothingSeconds:   1.2,
		RouteColor:               "#ff4d00",
		RouteWidth:               5.0,
		RouteSmooth:              2,
		ResampleStepM:            100.0,
		ShowMarkers:              true,
		ShowOutline:              true,
		TerrainEnabled:           true,
		FrameTimeoutMs:           15000,
		FrameWaitSignal:          "render-idle",
		FrameSettleDelayMs:       0,
		Quality:                  "final",
		CRF:                      18,
		Preset:                   "medium",
	}
}

// ApplyQuality adjusts the frame-wait strategy to the quality preset.
// Preview trades settled frames for speed.
func (c *Config) ApplyQuality() error {
	switch c.Quality {
	case "preview":
		c.FrameWaitSignal = "render"
		c.FrameSettleDelayMs = 150
		c.FrameTimeoutMs = 6000
	case "final":
		c.FrameWaitSignal = "render-idle"
	default:
		return fmt.Errorf("unknown quality preset: %s", c.Quality)
	}
	return nil
}

// Validate rejects configurations no render session can run with.
func (c *Config) Validate() error {
	if c.Mode != ModeAuto && c.Mode != ModeFollow {
		return fmt.Errorf("unknown mode: %s", c.Mode)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.IntroSeconds < 0 || c.OutroSeconds < 0 {
		return fmt.Errorf("intro/outro must not be negative")
	}
	return nil
}

// LoadProfile overlays a yaml render profile onto the config. Fields absent
// from the file keep their current values.
func (c *Config) LoadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

// SaveProfile writes the config as a yaml profile.
func (c *Config) SaveProfile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
