// Package terrain samples ground elevation from terrain-RGB DEM tiles, the
// encoding MapTiler and Mapbox serve. Tiles are cached on disk and in a small
// in-memory map; a missing or unfetchable tile degrades to "no height" rather
// than failing the render.
package terrain

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	tileSize      = 256
	memCacheTiles = 64
	userAgent     = "trailgen/1.0"
)

// DecodeMapbox converts one mapbox-encoded terrain-RGB pixel to meters.
func DecodeMapbox(r, g, b uint8) float64 {
	return -10000.0 + float64(int(r)*256*256+int(g)*256+int(b))*0.1
}

// DecodeTerrarium converts one terrarium-encoded pixel to meters.
func DecodeTerrarium(r, g, b uint8) float64 {
	return float64(int(r)*256+int(g)) + float64(b)/256.0 - 32768.0
}

// TileXYZ returns the slippy-map tile containing (lon, lat) at the zoom.
func TileXYZ(lon, lat float64, zoom int) (x, y int) {
	fx, fy := tileFloat(lon, lat, zoom)
	n := 1 << zoom
	x = clampInt(int(fx), 0, n-1)
	y = clampInt(int(fy), 0, n-1)
	return x, y
}

// tileFloat is the fractional tile coordinate of (lon, lat).
func tileFloat(lon, lat float64, zoom int) (float64, float64) {
	latRad := lat * math.Pi / 180.0
	n := float64(int(1) << zoom)
	x := (lon + 180.0) / 360.0 * n
	y := (1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * n
	return x, y
}

// SelectZoom picks the DEM zoom whose ground resolution is closest to
// targetResolutionM at the given latitude, clamped to the zooms terrain
// tilesets actually serve.
func SelectZoom(lat, targetResolutionM float64) int {
	value := math.Cos(lat*math.Pi/180.0) * 2 * math.Pi * 6371000.0 / (tileSize * targetResolutionM)
	zoom := int(math.Round(math.Log2(value)))
	return clampInt(zoom, 8, 14)
}

// Sampler resolves heights from one terrain tileset at a fixed zoom.
type Sampler struct {
	urlTemplate  string
	encoding     string
	cacheDir     string
	zoom         int
	exaggeration float64
	ext          string

	client *http.Client
	tiles  map[[2]int]image.Image
	order  [][2]int // insertion order for eviction
}

// NewSampler builds a sampler. encoding is "mapbox" or "terrarium";
// exaggeration scales every returned height.
func NewSampler(urlTemplate, encoding, cacheDir string, zoom int, exaggeration float64) *Sampler {
	if encoding == "" {
		encoding = "mapbox"
	}
	if exaggeration <= 0 {
		exaggeration = 1.0
	}
	return &Sampler{
		urlTemplate:  urlTemplate,
		encoding:     strings.ToLower(encoding),
		cacheDir:     cacheDir,
		zoom:         zoom,
		exaggeration: exaggeration,
		ext:          inferExtension(urlTemplate),
		client:       &http.Client{Timeout: 20 * time.Second},
		tiles:        make(map[[2]int]image.Image),
	}
}

// HeightAt returns the terrain height under (lon, lat), or ok=false when the
// tile cannot be fetched or decoded.
func (s *Sampler) HeightAt(lon, lat float64) (float64, bool) {
	fx, fy := tileFloat(lon, lat, s.zoom)
	n := 1 << s.zoom
	tileX := clampInt(int(fx), 0, n-1)
	tileY := clampInt(int(fy), 0, n-1)
	px := clampInt(int((fx-float64(tileX))*tileSize), 0, tileSize-1)
	py := clampInt(int((fy-float64(tileY))*tileSize), 0, tileSize-1)

	tile := s.loadTile(tileX, tileY)
	if tile == nil {
		return 0, false
	}
	r, g, b, _ := tile.At(tile.Bounds().Min.X+px, tile.Bounds().Min.Y+py).RGBA()

	var height float64
	if s.encoding == "terrarium" {
		height = DecodeTerrarium(uint8(r>>8), uint8(g>>8), uint8(b>>8))
	} else {
		height = DecodeMapbox(uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
	return height * s.exaggeration, true
}

func (s *Sampler) loadTile(x, y int) image.Image {
	key := [2]int{x, y}
	if tile, ok := s.tiles[key]; ok {
		return tile
	}

	tilePath := filepath.Join(s.cacheDir, "terrain_rgb",
		fmt.Sprint(s.zoom), fmt.Sprint(x), fmt.Sprintf("%d.%s", y, s.ext))

	data, err := os.ReadFile(tilePath)
	if err != nil {
		data = s.fetch(x, y)
		if data == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(tilePath), 0755); err == nil {
			os.WriteFile(tilePath, data, 0644)
		}
	}

	tile, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	if len(s.order) >= memCacheTiles {
		delete(s.tiles, s.order[0])
		s.order = s.order[1:]
	}
	s.tiles[key] = tile
	s.order = append(s.order, key)
	return tile
}

func (s *Sampler) fetch(x, y int) []byte {
	u := strings.NewReplacer(
		"{z}", fmt.Sprint(s.zoom),
		"{x}", fmt.Sprint(x),
		"{y}", fmt.Sprint(y),
	).Replace(s.urlTemplate)

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return data
}

// inferExtension pulls the tile image format out of a URL template, so
// cached files keep a meaningful suffix and the right decoder is picked.
func inferExtension(template string) string {
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
	if u, err := url.Parse(template); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return ext
		}
	}
	return "png"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
