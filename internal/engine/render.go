// Package engine собирает рендер целиком: трек, синтезатор камеры, локальный
// сервер рендерера, headless-браузер и приёмник кадров — и запускает сессию.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ivlev/trailgen/internal/camera"
	"github.com/ivlev/trailgen/internal/config"
	"github.com/ivlev/trailgen/internal/overlay"
	"github.com/ivlev/trailgen/internal/pipeline"
	"github.com/ivlev/trailgen/internal/renderer"
	"github.com/ivlev/trailgen/internal/system"
	"github.com/ivlev/trailgen/internal/terrain"
	"github.com/ivlev/trailgen/internal/track"
	"github.com/ivlev/trailgen/internal/video"
)

// demZoomBias понижает зум DEM-тайлов: для высоты камеры хватает грубого
// рельефа, а тайлов нужно в разы меньше.
const demZoomBias = -2

// Render превращает точки маршрута в готовый видеофайл по конфигурации.
// Единственная операция, которую вызывает CLI.
func Render(ctx context.Context, points []track.RoutePoint, cfg config.Config, mapCfg config.MapConfig, outputPath string) error {
	points = track.Resample(points, cfg.ResampleStepM)
	if cfg.RouteSmooth > 0 {
		points = track.Chaikin(points, cfg.RouteSmooth)
	}

	trk, err := track.Build(points)
	if err != nil {
		return err
	}

	if cfg.DurationSeconds <= 0 {
		// Длительность из средней скорости пролёта.
		speedMps := cfg.SpeedKmh * 1000 / 3600
		if speedMps < 0.1 {
			speedMps = 0.1
		}
		cfg.DurationSeconds = trk.TotalDistance() / speedMps
		if cfg.DurationSeconds < 1 {
			cfg.DurationSeconds = 1
		}
	}

	cacheDir := defaultCacheDir()

	var sampler camera.HeightSampler
	terrainTiles := ""
	if cfg.TerrainEnabled && mapCfg.TerrainTiles != "" {
		terrainTiles = mapCfg.TerrainTiles
		avgLat := 0.0
		for _, p := range trk.Points {
			avgLat += p.Lat
		}
		avgLat /= float64(len(trk.Points))
		demZoom := terrain.SelectZoom(avgLat, 30.0) + demZoomBias
		if demZoom < 8 {
			demZoom = 8
		}
		sampler = terrain.NewSampler(mapCfg.TerrainTiles, mapCfg.TerrainEncoding, cacheDir, demZoom, mapCfg.TerrainExaggeration)
	}

	synth := camera.New(trk, cfg, sampler)
	plan := synth.Plan()
	fmt.Printf("--- [TRAILGEN RENDER] ---\n")
	fmt.Printf("[*] Маршрут: %.1f км, %d точек\n", trk.TotalDistance()/1000, len(trk.Points))
	fmt.Printf("[*] Кадры: %d всего (интро %d / основных %d / аутро %d) @ %d FPS\n",
		plan.TotalFrames, plan.IntroFrames, plan.MainFrames, plan.OutroFrames, cfg.FPS)
	fmt.Printf("[*] Разрешение: %dx%d | Режим: %s | Энкодер: %s\n", cfg.Width, cfg.Height, cfg.Mode, cfg.Encoder)
	fmt.Printf("-------------------------\n")

	server := renderer.NewServer(mapCfg.RasterTiles, terrainTiles, cacheDir)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	pageCfg := renderer.PageConfig{
		StyleURL:            mapCfg.StyleURL,
		BlankStyle:          mapCfg.BlankStyle,
		RasterTiles:         server.RasterTemplate(),
		TerrainTiles:        server.TerrainTemplate(),
		TerrainEncoding:     mapCfg.TerrainEncoding,
		TerrainExaggeration: mapCfg.TerrainExaggeration,
		RouteColor:          cfg.RouteColor,
		RouteWidth:          scaledRouteWidth(cfg),
		ShowOutline:         cfg.ShowOutline,
		MaxZoom:             cfg.MaxZoom,
		FrameWait:           cfg.FrameWaitSignal,
	}
	surface := renderer.NewBrowser(server.BaseURL(), pageCfg, cfg.Width, cfg.Height)
	defer surface.Close()

	var stamper pipeline.FrameStamper
	if cfg.HUD {
		hud, err := overlay.New(cfg.Height)
		if err != nil {
			return err
		}
		stamper = hud
	}

	// Приёмник собирается последним: после этой точки любой срыв проходит
	// через сессию, и её Abort приберёт ffmpeg и частичный файл.
	sink, err := buildSink(ctx, cfg, outputPath)
	if err != nil {
		return err
	}

	session := pipeline.NewSession(cfg, trk, synth, surface, sink, stamper)
	if err := session.Run(ctx); err != nil {
		return err
	}

	fmt.Printf("[+++] Готово: %s\n", outputPath)
	return nil
}

// buildSink выбирает приёмник кадров: директория с финальной сборкой, если
// кадры нужно сохранить, иначе потоковая передача в ffmpeg.
func buildSink(ctx context.Context, cfg config.Config, outputPath string) (pipeline.FrameSink, error) {
	if cfg.FramesDir != "" || cfg.KeepFrames {
		sink, err := video.NewDirSink(cfg.FramesDir, outputPath, cfg, cfg.KeepFrames)
		if err != nil {
			return nil, err
		}
		fmt.Printf("[*] Кадры сохраняются в %s\n", sink.Dir())
		return sink, nil
	}
	if !system.EnoughMemoryToBuffer(cfg.FPS, cfg.Width, cfg.Height) {
		log.Printf("[!] Мало свободной памяти для буфера кадров, энкодер может стать узким местом")
	}
	return video.NewStreamSink(ctx, outputPath, cfg)
}

// scaledRouteWidth масштабирует толщину линии под разрешение, чтобы маршрут
// выглядел одинаково в 720p и 4K.
func scaledRouteWidth(cfg config.Config) float64 {
	w := cfg.RouteWidth * float64(cfg.Height) / 1080.0
	if w < 1 {
		w = 1
	}
	return w
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trailgen_cache")
	}
	return filepath.Join(home, ".trailgen", "cache")
}
