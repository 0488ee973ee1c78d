package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.DurationSeconds = 30
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "orbit" }},
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"negative width", func(c *Config) { c.Width = -1 }},
		{"negative intro", func(c *Config) { c.IntroSeconds = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestApplyQuality(t *testing.T) {
	cfg := Default()
	cfg.Quality = "preview"
	if err := cfg.ApplyQuality(); err != nil {
		t.Fatalf("ApplyQuality: %v", err)
	}
	if cfg.FrameWaitSignal != "render" {
		t.Errorf("preview must wait for render only, got %q", cfg.FrameWaitSignal)
	}
	if cfg.FrameSettleDelayMs == 0 {
		t.Error("preview must add a settle delay in place of idle waiting")
	}

	cfg = Default()
	cfg.Quality = "final"
	if err := cfg.ApplyQuality(); err != nil {
		t.Fatalf("ApplyQuality: %v", err)
	}
	if cfg.FrameWaitSignal != "render-idle" {
		t.Errorf("final must wait for idle, got %q", cfg.FrameWaitSignal)
	}

	cfg.Quality = "ultra"
	if err := cfg.ApplyQuality(); err == nil {
		t.Error("unknown preset must be rejected")
	}
}

func TestProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	cfg := Default()
	cfg.Mode = ModeFollow
	cfg.FPS = 60
	cfg.RouteColor = "#00ff88"
	cfg.FollowDistanceM = 400
	if err := cfg.SaveProfile(path); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	loaded := Default()
	if err := loaded.LoadProfile(path); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if loaded.Mode != ModeFollow || loaded.FPS != 60 ||
		loaded.RouteColor != "#00ff88" || loaded.FollowDistanceM != 400 {
		t.Errorf("profile fields lost in round trip: %+v", loaded)
	}
}

func TestProfileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("fps: 24\nmode: follow\n"), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadProfile(path); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if cfg.FPS != 24 || cfg.Mode != ModeFollow {
		t.Errorf("profile values not applied: fps=%d mode=%s", cfg.FPS, cfg.Mode)
	}
	// Untouched fields keep their defaults.
	if cfg.Width != 1920 || cfg.RouteColor != "#ff4d00" {
		t.Errorf("defaults lost under partial profile: %+v", cfg)
	}
}

func TestMapFromEnv(t *testing.T) {
	t.Setenv("MAPTILER_KEY", "")
	t.Setenv("MAPBOX_TOKEN", "")
	if _, err := MapFromEnv(); err == nil {
		t.Error("no credentials must be an error")
	}

	t.Setenv("MAPTILER_KEY", "abc123")
	mc, err := MapFromEnv()
	if err != nil {
		t.Fatalf("MapFromEnv: %v", err)
	}
	if mc.StyleURL == "" || mc.TerrainTiles == "" {
		t.Error("maptiler config must carry style and terrain URLs")
	}
	if mc.RasterTiles == "" {
		t.Error("maptiler config must carry a satellite tile template")
	}
	if mc.TerrainEncoding != "mapbox" {
		t.Errorf("expected mapbox terrain encoding, got %q", mc.TerrainEncoding)
	}

	// MapTiler wins over Mapbox when both are set.
	t.Setenv("MAPBOX_TOKEN", "tok456")
	mc, err = MapFromEnv()
	if err != nil {
		t.Fatalf("MapFromEnv: %v", err)
	}
	if !contains(mc.StyleURL, "maptiler") {
		t.Errorf("MAPTILER_KEY must take precedence, got %s", mc.StyleURL)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
