// Package renderer hosts the 3D rendering surface: a MapLibre page running in
// headless Chromium, fed by a local HTTP server that serves the page and
// proxies map tiles through a disk cache.
package renderer

import (
	"context"
	"time"

	"github.com/ivlev/trailgen/internal/camera"
)

// Surface is the stateful rendering surface the frame coordinator drives.
// Implementations hold shared mutable view state and must be driven from a
// single goroutine, one frame at a time.
type Surface interface {
	// Init loads the style and the initial camera; it must complete before
	// any other call. A failure is fatal for the session.
	Init(ctx context.Context, initial camera.State) error

	// SetRoute installs the route line data.
	SetRoute(ctx context.Context, geojson map[string]any) error

	// SetMarkers installs start/end markers.
	SetMarkers(ctx context.Context, points []Marker) error

	// SetCamera applies a camera pose and schedules a repaint.
	SetCamera(ctx context.Context, st camera.State) error

	// SetRouteProgress reveals the route up to the given fraction; a negative
	// value hides the line entirely.
	SetRouteProgress(ctx context.Context, progress float64) error

	// AwaitSettle waits for the named completion signal from the renderer.
	// It returns settled=false without error when the timeout elapses; the
	// caller decides whether to proceed with a possibly-unsettled frame.
	AwaitSettle(ctx context.Context, signal string, timeout time.Duration) (settled bool, err error)

	// Capture returns the current framebuffer as PNG bytes.
	Capture(ctx context.Context) ([]byte, error)

	Close() error
}

// Marker is one labeled point shown on the map.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// InitError marks a failure to start or load the rendering surface. Fatal:
// nothing can be rendered without a live surface.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return "renderer init failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "renderer init failed: " + e.Reason
}

func (e *InitError) Unwrap() error { return e.Err }
