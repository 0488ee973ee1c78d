package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/trailgen/internal/config"
	"github.com/ivlev/trailgen/internal/engine"
	"github.com/ivlev/trailgen/internal/system"
	"github.com/ivlev/trailgen/internal/track"
)

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	// Создаем нужные директории, если их нет
	dirs := []string{"input/gpx", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	// Ключи провайдера карт живут в .env рядом с бинарём.
	godotenv.Load()

	def := config.Default()

	inputPtr := flag.String("gpx", "", "Путь к GPX-треку (по умолчанию: самый свежий файл в input/gpx/)")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	profilePtr := flag.String("profile", "", "YAML-профиль рендера, накладывается поверх значений по умолчанию")
	modePtr := flag.String("mode", string(def.Mode), "Режим камеры: auto (обзорный пролёт) или follow (преследование)")
	durationPtr := flag.Float64("duration", 0, "Длительность основной фазы в секундах (если 0, рассчитывается из -speed)")
	speedPtr := flag.Float64("speed", def.SpeedKmh, "Средняя скорость пролёта, км/ч (используется при -duration 0)")
	fpsPtr := flag.Int("fps", def.FPS, "FPS")
	widthPtr := flag.Int("width", def.Width, "Ширина")
	heightPtr := flag.Int("height", def.Height, "Высота")
	presetPtr := flag.String("format", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	introPtr := flag.Float64("intro", def.IntroSeconds, "Длительность интро (сек)")
	outroPtr := flag.Float64("outro", def.OutroSeconds, "Длительность аутро (сек)")
	pitchPtr := flag.Float64("pitch", def.TargetPitch, "Наклон камеры в основной фазе (градусы)")
	maxZoomPtr := flag.Float64("max-zoom", def.MaxZoom, "Максимальный зум карты")
	colorPtr := flag.String("route-color", def.RouteColor, "Цвет линии маршрута")
	terrainPtr := flag.Bool("terrain", def.TerrainEnabled, "3D-рельеф и высота камеры по DEM")
	markersPtr := flag.Bool("markers", def.ShowMarkers, "Маркеры старта и финиша")
	qualityPtr := flag.String("quality", def.Quality, "Качество: preview (быстро, без ожидания тайлов) или final")
	crfPtr := flag.Int("crf", def.CRF, "CRF для libx264 (меньше - лучше)")
	framesDirPtr := flag.String("frames-dir", "", "Директория кадров (включает режим посборочной сборки)")
	keepFramesPtr := flag.Bool("keep-frames", false, "Не удалять PNG-кадры после сборки видео")
	hudPtr := flag.Bool("hud", false, "Оверлей с дистанцией и прогрессом на кадрах")

	flag.Parse()

	cfg := def
	if *profilePtr != "" {
		if err := cfg.LoadProfile(*profilePtr); err != nil {
			log.Fatalf("[-] Ошибка профиля: %v", err)
		}
	}

	cfg.Mode = config.Mode(*modePtr)
	cfg.DurationSeconds = *durationPtr
	cfg.SpeedKmh = *speedPtr
	cfg.FPS = *fpsPtr
	cfg.Width = *widthPtr
	cfg.Height = *heightPtr
	cfg.IntroSeconds = *introPtr
	cfg.OutroSeconds = *outroPtr
	cfg.TargetPitch = *pitchPtr
	cfg.MaxZoom = *maxZoomPtr
	cfg.RouteColor = *colorPtr
	cfg.TerrainEnabled = *terrainPtr
	cfg.ShowMarkers = *markersPtr
	cfg.Quality = *qualityPtr
	cfg.CRF = *crfPtr
	cfg.FramesDir = *framesDirPtr
	cfg.KeepFrames = *keepFramesPtr
	cfg.HUD = *hudPtr

	switch *presetPtr {
	case "16:9":
		cfg.Width, cfg.Height = 1920, 1080
	case "9:16":
		cfg.Width, cfg.Height = 1080, 1920
	case "4:5":
		cfg.Width, cfg.Height = 1080, 1350
	}

	if err := cfg.ApplyQuality(); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := system.FindLatestGPX("input/gpx")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите GPX в input/gpx/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Выбран трек: %s\n", inputPath)
	}

	if err := system.EnsureFFmpeg(); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	mapCfg, err := config.MapFromEnv()
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	points, err := track.LoadGPX(inputPath)
	if err != nil {
		log.Fatalf("[-] Ошибка чтения трека: %v", err)
	}

	finalOutput := *outputPtr
	if finalOutput == "" {
		baseName := filepath.Base(inputPath)
		nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
		cleanName := strings.ReplaceAll(nameOnly, " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		finalOutput = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
	}

	encoderName, _ := system.GetBestH264Encoder()
	if encoderName != "libx264" {
		fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
	}
	cfg.Encoder = encoderName
	cfg.OutputPath = finalOutput

	// Ctrl+C отменяет рендер между кадрами, ffmpeg завершается штатно.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Render(ctx, points, cfg, mapCfg, finalOutput); err != nil {
		log.Fatalf("[-] Ошибка рендера: %v", err)
	}
}
