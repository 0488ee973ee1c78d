package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	maptilerStyle        = "https://api.maptiler.com/maps/hybrid-v4/style.json?key=%s"
	maptilerRasterTiles  = "https://api.maptiler.com/tiles/satellite-v2/{z}/{x}/{y}.jpg?key=%s"
	maptilerTerrainTiles = "https://api.maptiler.com/tiles/terrain-rgb-v2/{z}/{x}/{y}.webp?key=%s"

	mapboxStyle        = "https://api.mapbox.com/styles/v1/mapbox/satellite-streets-v12?access_token=%s"
	mapboxRasterTiles  = "https://api.mapbox.com/v4/mapbox.satellite/{z}/{x}/{y}.jpg90?access_token=%s"
	mapboxTerrainTiles = "https://api.mapbox.com/raster/v1/mapbox.mapbox-terrain-dem-v1/{z}/{x}/{y}.png?access_token=%s"
)

// MapConfig describes the tile provider handed to the rendering surface.
// RasterTiles is the satellite imagery drawn under the route when the style
// itself is not used (blank style) or as the base layer.
type MapConfig struct {
	StyleURL            string
	RasterTiles         string
	TerrainTiles        string
	TerrainEncoding     string // "mapbox" | "terrarium"
	TerrainExaggeration float64
	BlankStyle          bool
}

// MapFromEnv builds the provider config from environment credentials.
// MAPTILER_KEY takes precedence; MAPBOX_TOKEN is the fallback provider.
func MapFromEnv() (MapConfig, error) {
	if key := strings.TrimSpace(os.Getenv("MAPTILER_KEY")); key != "" {
		return MapConfig{
			StyleURL:            fmt.Sprintf(maptilerStyle, key),
			RasterTiles:         fmt.Sprintf(maptilerRasterTiles, key),
			TerrainTiles:        fmt.Sprintf(maptilerTerrainTiles, key),
			TerrainEncoding:     "mapbox",
			TerrainExaggeration: 1.0,
		}, nil
	}
	if token := strings.TrimSpace(os.Getenv("MAPBOX_TOKEN")); token != "" {
		return MapConfig{
			StyleURL:            fmt.Sprintf(mapboxStyle, token),
			RasterTiles:         fmt.Sprintf(mapboxRasterTiles, token),
			TerrainTiles:        fmt.Sprintf(mapboxTerrainTiles, token),
			TerrainEncoding:     "mapbox",
			TerrainExaggeration: 1.0,
		}, nil
	}
	return MapConfig{}, fmt.Errorf("no map provider credentials: set MAPTILER_KEY or MAPBOX_TOKEN (see .env)")
}
