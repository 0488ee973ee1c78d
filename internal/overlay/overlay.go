// Package overlay stamps a small HUD (distance, elevation, progress) onto
// captured frames before they are handed to the encoder.
package overlay

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ivlev/trailgen/internal/camera"
)

// HUD renders the text overlay. One instance serves a whole session.
type HUD struct {
	font     *truetype.Font
	fontSize float64
	margin   float64
}

// New sizes the HUD for the given frame height.
func New(frameHeight int) (*HUD, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse HUD font: %w", err)
	}
	size := float64(frameHeight) / 32.0
	if size < 14 {
		size = 14
	}
	return &HUD{font: f, fontSize: size, margin: size}, nil
}

// Stamp decodes a captured PNG frame, draws the HUD in the bottom-left
// corner and re-encodes it. Frames before the reveal get no distance line.
func (h *HUD) Stamp(frame []byte, st camera.State, distanceM float64) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	dc := gg.NewContextForImage(img)
	face := truetype.NewFace(h.font, &truetype.Options{Size: h.fontSize})
	dc.SetFontFace(face)

	lines := h.lines(st, distanceM)
	x := h.margin
	y := float64(dc.Height()) - h.margin - float64(len(lines)-1)*h.fontSize*1.4
	for _, line := range lines {
		// Soft shadow keeps the text readable over bright terrain.
		dc.SetRGBA(0, 0, 0, 0.65)
		dc.DrawString(line, x+1.5, y+1.5)
		dc.SetRGB(1, 1, 1)
		dc.DrawString(line, x, y)
		y += h.fontSize * 1.4
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return out.Bytes(), nil
}

func (h *HUD) lines(st camera.State, distanceM float64) []string {
	if st.Progress < 0 {
		return []string{"0.0 km"}
	}
	lines := []string{fmt.Sprintf("%.1f km", distanceM/1000.0)}
	if st.AltitudeM > 0 {
		lines = append(lines, fmt.Sprintf("cam %d m", int(st.AltitudeM)))
	}
	lines = append(lines, fmt.Sprintf("%d%%", int(st.Progress*100+0.5)))
	return lines
}
