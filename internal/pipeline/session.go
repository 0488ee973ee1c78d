// Package pipeline держит покадровый цикл рендера: на каждый кадр —
// позиция камеры, ожидание стабилизации рендерера, захват и передача кадра
// энкодеру. Кадры идут строго по порядку, в полёте всегда один.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/trailgen/internal/camera"
	"github.com/ivlev/trailgen/internal/config"
	"github.com/ivlev/trailgen/internal/renderer"
	"github.com/ivlev/trailgen/internal/track"
)

// FrameRecord — один захваченный кадр. Создаётся координатором, потребляется
// приёмником ровно один раз.
type FrameRecord struct {
	Index int
	State camera.State
	PNG   []byte
}

// FrameSink принимает кадры строго по возрастанию индекса без пропусков.
// Close завершает кодирование; его ошибка — ошибка всего рендера. Abort
// прерывает кодирование и убирает частичный вывод; вызывается вместо Close
// при любом срыве сессии.
type FrameSink interface {
	Deliver(ctx context.Context, rec FrameRecord) error
	Close(ctx context.Context) error
	Abort()
}

// FrameStamper опционально дорисовывает оверлей на захваченный кадр.
type FrameStamper interface {
	Stamp(png []byte, st camera.State, distanceM float64) ([]byte, error)
}

// Session ведёт один рендер: живой рендерер, синтезатор камеры и приёмник
// кадров. Состояние сессии (текущий кадр, сглаживание камеры) нигде больше
// не используется.
type Session struct {
	cfg     config.Config
	trk     *track.Track
	synth   *camera.Synthesizer
	surface renderer.Surface
	sink    FrameSink
	stamper FrameStamper
}

// NewSession собирает сессию. stamper может быть nil.
func NewSession(cfg config.Config, trk *track.Track, synth *camera.Synthesizer, surface renderer.Surface, sink FrameSink, stamper FrameStamper) *Session {
	return &Session{cfg: cfg, trk: trk, synth: synth, surface: surface, sink: sink, stamper: stamper}
}

// Run прогоняет все кадры. Любая ошибка, кроме таймаута стабилизации,
// прерывает рендер целиком — частичное видео никогда не выдаётся за готовое.
func (s *Session) Run(ctx context.Context) error {
	plan := s.synth.Plan()

	// Любой ранний выход оставляет за собой живой ffmpeg и недописанный
	// файл; Abort убивает первое и удаляет второе.
	finished := false
	defer func() {
		if !finished {
			s.sink.Abort()
		}
	}()

	first, err := s.synth.StateAt(0)
	if err != nil {
		return err
	}
	if err := s.surface.Init(ctx, first); err != nil {
		return err
	}

	if err := s.surface.SetRoute(ctx, s.trk.GeoJSON()); err != nil {
		return fmt.Errorf("push route to renderer: %w", err)
	}
	if s.cfg.ShowMarkers {
		if err := s.surface.SetMarkers(ctx, s.markers()); err != nil {
			return fmt.Errorf("push markers to renderer: %w", err)
		}
	}
	// Маршрут скрыт до конца интро.
	if err := s.surface.SetRouteProgress(ctx, camera.HiddenProgress); err != nil {
		return fmt.Errorf("hide route: %w", err)
	}

	timeout := time.Duration(s.cfg.FrameTimeoutMs) * time.Millisecond
	settleDelay := time.Duration(s.cfg.FrameSettleDelayMs) * time.Millisecond
	timeouts := 0

	bar := progressbar.Default(int64(plan.TotalFrames), "Rendering frames")
	lastProgress := camera.HiddenProgress

	for i := 0; i < plan.TotalFrames; i++ {
		// Отмена возможна только между кадрами: кадр в полёте ограничен
		// таймаутом и не может зависнуть навсегда.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("render cancelled at frame %d: %w", i, err)
		}

		st, err := s.synth.StateAt(i)
		if err != nil {
			return err
		}

		if err := s.surface.SetCamera(ctx, st); err != nil {
			return fmt.Errorf("set camera for frame %d: %w", i, err)
		}
		if st.Progress != lastProgress {
			if err := s.surface.SetRouteProgress(ctx, st.Progress); err != nil {
				return fmt.Errorf("set route progress for frame %d: %w", i, err)
			}
			lastProgress = st.Progress
		}

		settled, err := s.surface.AwaitSettle(ctx, s.cfg.FrameWaitSignal, timeout)
		if err != nil {
			return fmt.Errorf("await settle for frame %d: %w", i, err)
		}
		if !settled {
			// Деградация, не фатал: лучше один несведённый кадр, чем
			// зависший рендер.
			timeouts++
			log.Printf("[!] Кадр %d (%s): рендерер не стабилизировался за %v, продолжаем", i, plan.Phase(i), timeout)
		}
		if settleDelay > 0 {
			select {
			case <-time.After(settleDelay):
			case <-ctx.Done():
				return fmt.Errorf("render cancelled at frame %d: %w", i, ctx.Err())
			}
		}

		png, err := s.surface.Capture(ctx)
		if err != nil {
			return &CaptureError{Frame: i, Phase: plan.Phase(i), Err: err}
		}

		if s.stamper != nil {
			distance := 0.0
			if st.Progress > 0 {
				distance = st.Progress * s.trk.TotalDistance()
			}
			stamped, err := s.stamper.Stamp(png, st, distance)
			if err != nil {
				log.Printf("[!] Оверлей кадра %d не отрисован: %v", i, err)
			} else {
				png = stamped
			}
		}

		if err := s.sink.Deliver(ctx, FrameRecord{Index: i, State: st, PNG: png}); err != nil {
			return &DeliveryError{Frame: i, Err: err}
		}
		bar.Add(1)
	}

	if timeouts > 0 {
		log.Printf("[!] Кадров с таймаутом стабилизации: %d из %d", timeouts, plan.TotalFrames)
	}
	if err := s.sink.Close(ctx); err != nil {
		return err
	}
	finished = true
	return nil
}

func (s *Session) markers() []renderer.Marker {
	start := s.trk.Points[0]
	end := s.trk.Points[len(s.trk.Points)-1]
	return []renderer.Marker{
		{Lat: start.Lat, Lon: start.Lon, Label: "start", Color: "#2ecc71"},
		{Lat: end.Lat, Lon: end.Lon, Label: "finish", Color: "#e74c3c"},
	}
}
