package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/mem"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	// Chromium и тайловый кэш держат много дескрипторов одновременно.
	rLimit.Cur = 4096
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

func GetBestH264Encoder() (string, string) {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)

	encoders := []struct {
		name string
		args string
	}{
		{"h264_videotoolbox", ""},
		{"h264_nvenc", ""},
	}

	for _, enc := range encoders {
		cmd := exec.Command("ffmpeg", "-encoders")
		out, err := cmd.CombinedOutput()
		if err == nil && strings.Contains(string(out), enc.name) {
			return enc.name, enc.args
		}
	}

	return "libx264", ""
}

// EnsureFFmpeg проверяет наличие ffmpeg в PATH до запуска рендера, чтобы не
// потерять отрисованные кадры из-за отсутствующего энкодера.
func EnsureFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg не найден в PATH: %w", err)
	}
	return nil
}

// FindLatestGPX возвращает самый свежий .gpx в директории.
func FindLatestGPX(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latest string
	var latestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gpx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().Unix() > latestMod {
			latest = filepath.Join(dir, e.Name())
			latestMod = info.ModTime().Unix()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("в %s нет .gpx файлов", dir)
	}
	return latest, nil
}

// EnoughMemoryToBuffer оценивает, поместится ли вся последовательность кадров
// в памяти/на tmpfs. Иначе лучше потоковый режим.
func EnoughMemoryToBuffer(frames, width, height int) bool {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return false
	}
	// PNG-кадр в среднем втрое меньше сырого RGBA.
	estimate := uint64(frames) * uint64(width*height*4) / 3
	return vm.Available > estimate*2
}
