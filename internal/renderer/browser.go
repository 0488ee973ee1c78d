package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ivlev/trailgen/internal/camera"
)

// PageConfig is injected into the renderer page as window.__CONFIG__ before
// it loads.
type PageConfig struct {
	StyleURL            string     `json:"styleUrl,omitempty"`
	BlankStyle          bool       `json:"blankStyle"`
	RasterTiles         string     `json:"rasterTiles,omitempty"`
	TerrainTiles        string     `json:"terrainTiles,omitempty"`
	TerrainEncoding     string     `json:"terrainEncoding,omitempty"`
	TerrainExaggeration float64    `json:"terrainExaggeration,omitempty"`
	RouteColor          string     `json:"routeColor"`
	RouteWidth          float64    `json:"routeWidth"`
	ShowOutline         bool       `json:"showOutline"`
	InitialCenter       [2]float64 `json:"initialCenter"`
	InitialZoom         float64    `json:"initialZoom"`
	Pitch               float64    `json:"pitch"`
	MaxZoom             float64    `json:"maxZoom"`
	FrameWait           string     `json:"frameWait"`
}

// Browser drives the renderer page inside headless Chromium. It implements
// Surface. All methods must be called from one goroutine.
type Browser struct {
	baseURL string
	cfg     PageConfig
	width   int
	height  int

	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ Surface = (*Browser)(nil)

// run executes actions on the browser tab, honoring the caller's context:
// cancelling ctx tears the chromedp context down, which aborts any action in
// flight. The session does not survive cancellation anyway.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		if b.cancelCtx != nil {
			b.cancelCtx()
		}
	})
	defer stop()
	return chromedp.Run(b.ctx, actions...)
}

// NewBrowser prepares a headless Chromium surface pointed at the local
// renderer server. Nothing is launched until Init.
func NewBrowser(baseURL string, cfg PageConfig, width, height int) *Browser {
	return &Browser{baseURL: baseURL, cfg: cfg, width: width, height: height}
}

// Init launches Chromium with software WebGL, loads the page and waits until
// the map style is ready.
func (b *Browser) Init(ctx context.Context, initial camera.State) error {
	b.cfg.InitialCenter = [2]float64{initial.Lon, initial.Lat}
	b.cfg.InitialZoom = initial.Zoom
	b.cfg.Pitch = initial.Pitch

	cfgJSON, err := json.Marshal(b.cfg)
	if err != nil {
		return &InitError{Reason: "marshal page config", Err: err}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("enable-webgl", true),
		chromedp.Flag("ignore-gpu-blocklist", true),
		chromedp.WindowSize(b.width, b.height),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	b.ctx = browserCtx
	b.cancelCtx = cancelCtx
	b.cancelAlloc = cancelAlloc

	script := fmt.Sprintf("window.__CONFIG__ = %s;", cfgJSON)
	err = b.run(ctx,
		chromedp.EmulateViewport(int64(b.width), int64(b.height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Navigate(b.baseURL+"/"),
		chromedp.Poll("window.__READY__ === true || window.__READY__ === 'error'", nil,
			chromedp.WithPollingTimeout(120*time.Second)),
	)
	if err != nil {
		return &InitError{Reason: "load renderer page", Err: err}
	}

	var ready any
	if err := b.run(ctx, chromedp.Evaluate("window.__READY__", &ready)); err != nil {
		return &InitError{Reason: "query readiness", Err: err}
	}
	if ready != true {
		var msg string
		b.run(ctx, chromedp.Evaluate("window.__ERROR__ || 'renderer failed to initialize'", &msg))
		return &InitError{Reason: msg}
	}
	return nil
}

// SetRoute pushes the route line and waits for the layer to be ingested.
func (b *Browser) SetRoute(ctx context.Context, geojson map[string]any) error {
	data, err := json.Marshal(geojson)
	if err != nil {
		return err
	}
	return b.run(ctx,
		chromedp.Evaluate(fmt.Sprintf("window.__setRoute(%s)", data), nil),
		chromedp.Poll("window.__ROUTE_READY__ === true", nil,
			chromedp.WithPollingTimeout(60*time.Second)),
	)
}

// SetMarkers installs point markers.
func (b *Browser) SetMarkers(ctx context.Context, markers []Marker) error {
	data, err := json.Marshal(markers)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.__setMarkers(%s)", data), nil))
}

// SetCamera applies a pose and triggers a repaint. The page clears its
// frame-done flag, which AwaitSettle then polls.
func (b *Browser) SetCamera(ctx context.Context, st camera.State) error {
	pose := map[string]float64{
		"lat":       st.Lat,
		"lon":       st.Lon,
		"zoom":      st.Zoom,
		"bearing":   st.Bearing,
		"pitch":     st.Pitch,
		"altitudeM": st.AltitudeM,
	}
	data, err := json.Marshal(pose)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.__setCamera(%s)", data), nil))
}

// SetRouteProgress reveals the route up to the fraction.
func (b *Browser) SetRouteProgress(ctx context.Context, progress float64) error {
	return b.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.__setProgress(%g)", progress), nil))
}

// AwaitSettle polls the frame-done flag until the signal fires or the
// timeout elapses. Timeout is reported, not an error.
func (b *Browser) AwaitSettle(ctx context.Context, signal string, timeout time.Duration) (bool, error) {
	if signal == "none" {
		return true, nil
	}
	err := b.run(ctx,
		chromedp.Poll("window.__FRAME_DONE__ === true", nil,
			chromedp.WithPollingTimeout(timeout)),
	)
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Capture screenshots the current framebuffer as PNG.
func (b *Browser) Capture(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close tears the browser down.
func (b *Browser) Close() error {
	if b.ctx != nil {
		chromedp.Cancel(b.ctx)
	}
	if b.cancelCtx != nil {
		b.cancelCtx()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	return nil
}
