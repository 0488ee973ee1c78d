package renderer

import (
	"embed"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

//go:embed page/index.html
var pageFS embed.FS

const cacheMaxBytes = 2 * 1024 * 1024 * 1024

// Server serves the renderer page to the headless browser and proxies map
// tiles through a local disk cache, so repeated renders of the same area do
// not refetch from the provider.
type Server struct {
	rasterUpstream  string
	terrainUpstream string
	cacheDir        string

	app    *fiber.App
	ln     net.Listener
	client *http.Client
	stores int
}

// NewServer builds the local renderer server. Upstream templates use
// {z}/{x}/{y} placeholders; empty templates disable the matching proxy route.
func NewServer(rasterUpstream, terrainUpstream, cacheDir string) *Server {
	s := &Server{
		rasterUpstream:  rasterUpstream,
		terrainUpstream: terrainUpstream,
		cacheDir:        cacheDir,
		client:          &http.Client{Timeout: 20 * time.Second},
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/", func(c *fiber.Ctx) error {
		data, err := pageFS.ReadFile("page/index.html")
		if err != nil {
			return fiber.ErrInternalServerError
		}
		c.Type("html")
		return c.Send(data)
	})
	app.Get("/tiles/:kind/:z/:x/:y", s.handleTile)
	s.app = app
	return s
}

// Start binds an ephemeral localhost port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("renderer server listen: %w", err)
	}
	s.ln = ln
	go s.app.Listener(ln)
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.app == nil {
		return nil
	}
	return s.app.Shutdown()
}

// BaseURL is the root the browser navigates to. Valid after Start.
func (s *Server) BaseURL() string {
	return "http://" + s.ln.Addr().String()
}

// RasterTemplate returns the proxied raster tile URL template, or "" when no
// raster upstream is configured.
func (s *Server) RasterTemplate() string {
	if s.rasterUpstream == "" {
		return ""
	}
	return s.BaseURL() + "/tiles/raster/{z}/{x}/{y}." + inferTileExt(s.rasterUpstream)
}

// TerrainTemplate returns the proxied terrain tile URL template, or "".
func (s *Server) TerrainTemplate() string {
	if s.terrainUpstream == "" {
		return ""
	}
	return s.BaseURL() + "/tiles/terrain/{z}/{x}/{y}." + inferTileExt(s.terrainUpstream)
}

func (s *Server) handleTile(c *fiber.Ctx) error {
	kind := c.Params("kind")
	var upstream string
	switch kind {
	case "raster":
		upstream = s.rasterUpstream
	case "terrain":
		upstream = s.terrainUpstream
	}
	if upstream == "" {
		return fiber.NewError(fiber.StatusNotFound, "tile upstream not configured")
	}

	z, x := c.Params("z"), c.Params("x")
	yPart := c.Params("y")
	y := yPart
	ext := "png"
	if i := strings.LastIndexByte(yPart, '.'); i >= 0 {
		y = yPart[:i]
		ext = yPart[i+1:]
	}

	cachePath := filepath.Join(s.cacheDir, kind, z, x, y+"."+ext)
	if data, err := os.ReadFile(cachePath); err == nil {
		now := time.Now()
		os.Chtimes(cachePath, now, now)
		c.Set("Access-Control-Allow-Origin", "*")
		c.Type(ext)
		return c.Send(data)
	}

	target := strings.NewReplacer("{z}", z, "{x}", x, "{y}", y).Replace(upstream)
	req, err := http.NewRequestWithContext(c.Context(), http.MethodGet, target, nil)
	if err != nil {
		return fiber.ErrBadGateway
	}
	req.Header.Set("User-Agent", "trailgen/1.0")
	resp, err := s.client.Do(req)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch tile")
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fiber.ErrBadGateway
	}
	if resp.StatusCode != http.StatusOK {
		return fiber.NewError(resp.StatusCode, "upstream tile error")
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err == nil {
		if err := os.WriteFile(cachePath, payload, 0644); err == nil {
			s.stores++
			if s.stores%256 == 0 {
				enforceCacheLimit(s.cacheDir, cacheMaxBytes)
			}
		}
	}

	c.Set("Access-Control-Allow-Origin", "*")
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set("Content-Type", ct)
	} else {
		c.Type(ext)
	}
	return c.Send(payload)
}

// enforceCacheLimit deletes the least recently used cached tiles until the
// cache fits under maxBytes.
func enforceCacheLimit(cacheDir string, maxBytes int64) {
	type entry struct {
		path  string
		size  int64
		mtime time.Time
	}
	var entries []entry
	var total int64
	filepath.Walk(cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		entries = append(entries, entry{path, info.Size(), info.ModTime()})
		return nil
	})
	if total <= maxBytes {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.Before(entries[j].mtime) })
	for _, e := range entries {
		if os.Remove(e.path) == nil {
			total -= e.size
		}
		if total <= maxBytes {
			return
		}
	}
}

func inferTileExt(template string) string {
	if i := strings.Index(template, "{y}."); i >= 0 {
		rest := template[i+len("{y}."):]
		end := strings.IndexAny(rest, "?&#")
		if end == -1 {
			end = len(rest)
		}
		if end > 0 {
			return rest[:end]
		}
	}
	return "png"
}
