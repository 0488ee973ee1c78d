// Package video передаёт кадры внешнему ffmpeg. Два режима: потоковый
// (PNG через stdin, image2pipe) и через директорию кадров с финальной
// сборкой по шаблону frame_%06d.png.
package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/trailgen/internal/config"
	"github.com/ivlev/trailgen/internal/pipeline"
)

// PipelineError — ошибка внешнего энкодера. Несёт хвост лога ffmpeg, чтобы
// диагноз не требовал повторного запуска.
type PipelineError struct {
	Op  string
	Err error
	Log string
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("encoding pipeline: %s: %v", e.Op, e.Err)
	if e.Log != "" {
		msg += "\nffmpeg: " + e.Log
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

// qualityArgs подбирает флаги качества под конкретный энкодер.
func qualityArgs(encoder string, crf int, preset string) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox не принимает CRF, используем битрейт.
		return []string{"-b:v", fmt.Sprintf("%dk", (52-crf)*250)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", crf)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", crf), "-preset", preset}
	}
}

func encoderName(cfg config.Config) string {
	if cfg.Encoder != "" {
		return cfg.Encoder
	}
	return "libx264"
}

func logTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	const keep = 2000
	if len(s) > keep {
		s = "…" + s[len(s)-keep:]
	}
	return s
}

// StreamSink кормит ffmpeg PNG-кадрами через stdin по мере захвата.
// Обратное давление естественное: Deliver блокируется, когда энкодер не
// успевает, и покадровый цикл сам замедляется до его скорости.
type StreamSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	frames chan pipeline.FrameRecord
	g      *errgroup.Group
	gctx   context.Context
	next   int
	closed bool
	output string
}

// NewStreamSink запускает ffmpeg и горутину-писателя.
func NewStreamSink(ctx context.Context, outputPath string, cfg config.Config) (*StreamSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, &PipelineError{Op: "prepare output dir", Err: err}
	}

	enc := encoderName(cfg)
	args := []string{
		"-y",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-framerate", fmt.Sprintf("%d", cfg.FPS),
		"-i", "-",
		"-c:v", enc,
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-r", fmt.Sprintf("%d", cfg.FPS),
	}
	args = append(args, qualityArgs(enc, cfg.CRF, cfg.Preset)...)
	args = append(args, outputPath)

	s := &StreamSink{
		frames: make(chan pipeline.FrameRecord, cfg.FPS),
		output: outputPath,
	}
	s.cmd = exec.CommandContext(ctx, "ffmpeg", args...)
	s.cmd.Stderr = &s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return nil, &PipelineError{Op: "stdin pipe", Err: err}
	}
	s.stdin = stdin

	if err := s.cmd.Start(); err != nil {
		return nil, &PipelineError{Op: "start ffmpeg", Err: err}
	}

	s.g, s.gctx = errgroup.WithContext(ctx)
	s.g.Go(func() error {
		defer s.stdin.Close()
		for rec := range s.frames {
			if _, err := s.stdin.Write(rec.PNG); err != nil {
				return &PipelineError{Op: fmt.Sprintf("write frame %d", rec.Index), Err: err}
			}
		}
		return nil
	})
	return s, nil
}

// Deliver принимает кадры строго по порядку; пропуск или повтор — ошибка
// контракта, а не лог.
func (s *StreamSink) Deliver(ctx context.Context, rec pipeline.FrameRecord) error {
	if rec.Index != s.next {
		return &PipelineError{Op: "deliver", Err: fmt.Errorf("frame %d delivered, expected %d", rec.Index, s.next)}
	}
	s.next++
	select {
	case s.frames <- rec:
		return nil
	case <-s.gctx.Done():
		return s.drainError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close закрывает поток и дожидается ffmpeg.
func (s *StreamSink) Close(ctx context.Context) error {
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	writerErr := s.g.Wait()
	waitErr := s.cmd.Wait()
	if writerErr != nil {
		return writerErr
	}
	if waitErr != nil {
		return &PipelineError{Op: "ffmpeg exit", Err: waitErr, Log: logTail(&s.stderr)}
	}
	return nil
}

// Abort убивает ffmpeg и удаляет частичный файл. Убить нужно до закрытия
// канала: иначе писатель дольёт буфер, закроет stdin и ffmpeg финализирует
// обрезанное видео как готовое.
func (s *StreamSink) Abort() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	s.g.Wait()
	s.cmd.Wait()
	os.Remove(s.output)
}

func (s *StreamSink) drainError() error {
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	if err := s.g.Wait(); err != nil {
		return err
	}
	return s.gctx.Err()
}

// DirSink складывает кадры в директорию и собирает видео одним проходом
// ffmpeg при закрытии. Кадры остаются на диске при keepFrames.
type DirSink struct {
	dir        string
	output     string
	cfg        config.Config
	keepFrames bool
	next       int
}

// NewDirSink готовит директорию кадров.
func NewDirSink(framesDir, outputPath string, cfg config.Config, keepFrames bool) (*DirSink, error) {
	if framesDir == "" {
		tmp, err := os.MkdirTemp("", "trailgen_frames_")
		if err != nil {
			return nil, &PipelineError{Op: "create frames dir", Err: err}
		}
		framesDir = tmp
	} else if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, &PipelineError{Op: "create frames dir", Err: err}
	}
	return &DirSink{dir: framesDir, output: outputPath, cfg: cfg, keepFrames: keepFrames}, nil
}

// Dir — директория, в которую пишутся кадры.
func (s *DirSink) Dir() string { return s.dir }

func (s *DirSink) Deliver(ctx context.Context, rec pipeline.FrameRecord) error {
	if rec.Index != s.next {
		return &PipelineError{Op: "deliver", Err: fmt.Errorf("frame %d delivered, expected %d", rec.Index, s.next)}
	}
	s.next++
	// Нумерация с единицы, шесть цифр — так ждёт шаблон ffmpeg.
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.png", rec.Index+1))
	if err := os.WriteFile(path, rec.PNG, 0644); err != nil {
		return &PipelineError{Op: fmt.Sprintf("store frame %d", rec.Index), Err: err}
	}
	return nil
}

func (s *DirSink) Close(ctx context.Context) error {
	if s.next == 0 {
		return &PipelineError{Op: "encode", Err: fmt.Errorf("no frames delivered")}
	}
	if err := os.MkdirAll(filepath.Dir(s.output), 0755); err != nil {
		return &PipelineError{Op: "prepare output dir", Err: err}
	}

	enc := encoderName(s.cfg)
	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", s.cfg.FPS),
		"-i", filepath.Join(s.dir, "frame_%06d.png"),
		"-c:v", enc,
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
	}
	args = append(args, qualityArgs(enc, s.cfg.CRF, s.cfg.Preset)...)
	args = append(args, s.output)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &PipelineError{Op: "encode frame sequence", Err: err, Log: logTail(&out)}
	}

	if !s.keepFrames {
		s.removeFrames()
	}
	return nil
}

// Abort удаляет частичный вывод и, если кадры не просили сохранить,
// отрисованные PNG.
func (s *DirSink) Abort() {
	os.Remove(s.output)
	if !s.keepFrames {
		s.removeFrames()
	}
}

func (s *DirSink) removeFrames() {
	matches, _ := filepath.Glob(filepath.Join(s.dir, "frame_*.png"))
	for _, m := range matches {
		os.Remove(m)
	}
	os.Remove(s.dir)
}
