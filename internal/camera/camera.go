// Package camera turns a track and a render configuration into a
// deterministic, time-indexed sequence of camera states. The timeline is
// partitioned into intro, main and outro phases; the main phase runs one of
// two policies (auto or follow) selected by configuration.
package camera

import (
	"fmt"
	"math"

	"github.com/ivlev/trailgen/internal/config"
	"github.com/ivlev/trailgen/internal/track"
)

// HiddenProgress is the sentinel carried by frames rendered before the route
// reveal starts. The rendering surface hides the route line entirely for it.
const HiddenProgress = -1.0

// State is the full camera pose plus route progress for one frame. Produced
// fresh per frame and never mutated afterwards.
type State struct {
	Lat       float64
	Lon       float64
	Zoom      float64
	Bearing   float64 // degrees [0, 360)
	Pitch     float64 // degrees from vertical
	AltitudeM float64 // free-camera altitude; 0 when the pose is zoom-based
	Progress  float64 // route fraction revealed, or HiddenProgress
}

// Phase identifies which part of the timeline a frame belongs to.
type Phase int

const (
	PhaseIntro Phase = iota
	PhaseMain
	PhaseOutro
)

func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhaseMain:
		return "main"
	default:
		return "outro"
	}
}

// Plan is the frame split of one render timeline.
type Plan struct {
	TotalFrames int
	IntroFrames int
	MainFrames  int
	OutroFrames int
}

// PlanFrames computes the phase split. Intro and outro are scaled down
// proportionally when they would leave fewer than two main frames.
func PlanFrames(cfg config.Config) Plan {
	total := int(math.Round(float64(cfg.FPS) * cfg.DurationSeconds))
	if total < 2 {
		total = 2
	}
	intro := int(math.Round(cfg.IntroSeconds * float64(cfg.FPS)))
	outro := int(math.Round(cfg.OutroSeconds * float64(cfg.FPS)))
	if intro+outro > total-2 {
		scale := float64(total-2) / float64(intro+outro)
		intro = int(float64(intro) * scale)
		outro = int(float64(outro) * scale)
	}
	return Plan{
		TotalFrames: total,
		IntroFrames: intro,
		MainFrames:  total - intro - outro,
		OutroFrames: outro,
	}
}

// Phase returns the phase of a frame index.
func (p Plan) Phase(frame int) Phase {
	switch {
	case frame < p.IntroFrames:
		return PhaseIntro
	case frame < p.IntroFrames+p.MainFrames:
		return PhaseMain
	default:
		return PhaseOutro
	}
}

// HeightSampler supplies terrain height under a coordinate. Implemented by
// the terrain package; nil disables terrain-aware altitude.
type HeightSampler interface {
	HeightAt(lon, lat float64) (float64, bool)
}

// Synthesizer produces camera states frame by frame. The follow policy keeps
// a small smoothing accumulator across calls, so states must be requested in
// increasing frame order; requesting an earlier frame replays the sequence
// from the start, which keeps the output deterministic either way.
type Synthesizer struct {
	trk     *track.Track
	cfg     config.Config
	plan    Plan
	terrain HeightSampler

	next     int // frame index the next sequential step will produce
	current  State
	smooth   smoothingState
	mainLast State // pose of the last main frame, anchor for the outro
}

// smoothingState is the per-session accumulator of the main-phase policies.
type smoothingState struct {
	initialized bool
	bearing     float64
	panEast     float64 // smoothed target offset from the reference point
	panNorth    float64
	altitude    float64
	refLat      float64
	refLon      float64
}

// New builds a synthesizer for one render session.
func New(trk *track.Track, cfg config.Config, terrain HeightSampler) *Synthesizer {
	return &Synthesizer{trk: trk, cfg: cfg, plan: PlanFrames(cfg), terrain: terrain}
}

// Plan exposes the frame split of this session.
func (s *Synthesizer) Plan() Plan { return s.plan }

// StateAt returns the camera state for a frame index in [0, TotalFrames).
func (s *Synthesizer) StateAt(frame int) (State, error) {
	if frame < 0 || frame >= s.plan.TotalFrames {
		return State{}, fmt.Errorf("frame %d outside [0, %d)", frame, s.plan.TotalFrames)
	}
	if frame < s.next-1 {
		// Rewind: replay deterministically from the start.
		s.next = 0
		s.smooth = smoothingState{}
	}
	if frame == s.next-1 {
		return s.current, nil
	}
	for s.next <= frame {
		s.current = s.step(s.next)
		s.next++
	}
	return s.current, nil
}

// step computes the pose for one frame, advancing smoothing state when the
// frame belongs to the main phase.
func (s *Synthesizer) step(frame int) State {
	switch s.plan.Phase(frame) {
	case PhaseIntro:
		return s.introState(frame)
	case PhaseMain:
		st := s.mainState(frame - s.plan.IntroFrames)
		s.mainLast = st
		return st
	default:
		return s.outroState(frame - s.plan.IntroFrames - s.plan.MainFrames)
	}
}

// mainState runs the configured policy for main-phase frame m in
// [0, MainFrames).
func (s *Synthesizer) mainState(m int) State {
	u := 0.0
	if s.plan.MainFrames > 1 {
		u = float64(m) / float64(s.plan.MainFrames-1)
	}
	d := s.trk.DistanceAtFraction(u)
	progress := d / s.trk.TotalDistance()

	var st State
	if s.cfg.Mode == config.ModeFollow {
		st = s.followPose(d)
	} else {
		st = s.autoPose(d)
	}
	st.Progress = progress
	return st
}

// mainStartAnchor is the pose of the first main frame, computed without
// touching smoothing state. Both policies initialize their accumulators to
// the raw values of the first sample, so the anchor matches the first main
// frame exactly and the intro lands on it without a jump.
func (s *Synthesizer) mainStartAnchor() State {
	saved := s.smooth
	defer func() { s.smooth = saved }()
	s.smooth = smoothingState{}
	if s.cfg.Mode == config.ModeFollow {
		return s.followPose(0)
	}
	return s.autoPose(0)
}

// introState orbits and zooms toward the start of the route. The orbit sweep
// is linear in frame index; zoom and pitch ease with smoothstep. All three
// end exactly at the first main frame's pose.
func (s *Synthesizer) introState(frame int) State {
	anchor := s.mainStartAnchor()
	if s.plan.IntroFrames == 0 {
		return anchor
	}
	t := float64(frame+1) / float64(s.plan.IntroFrames)
	ease := smoothstep(t)

	st := anchor
	st.Bearing = math.Mod(anchor.Bearing-s.cfg.OrbitDegrees*(1-t)+720.0, 360.0)
	st.Zoom = lerp(anchor.Zoom*s.cfg.ZoomOutFactor, anchor.Zoom, ease)
	st.Pitch = lerp(anchor.Pitch-s.cfg.PitchDropDegrees, anchor.Pitch, ease)
	if st.Pitch < 0 {
		st.Pitch = 0
	}
	if anchor.AltitudeM > 0 {
		// Free-camera poses pull back by raising altitude instead of zoom.
		st.AltitudeM = lerp(anchor.AltitudeM/s.cfg.ZoomOutFactor, anchor.AltitudeM, ease)
	}

	st.Progress = HiddenProgress
	if frame == s.plan.IntroFrames-1 {
		st.Progress = 0
	}
	return st
}

// outroState is the intro in reverse, anchored at the last main frame. The
// camera pulls out and orbits away from the route end while drifting toward
// the route's bounding-box center, progress pinned at 1.
func (s *Synthesizer) outroState(frame int) State {
	anchor := s.mainLast
	if s.plan.OutroFrames == 0 {
		return anchor
	}
	t := float64(frame+1) / float64(s.plan.OutroFrames)
	ease := smoothstep(t)

	// Pull out at least far enough to frame the whole route.
	fit := fitZoom(2.2*s.trk.MaxRadiusM(), anchor.Lat, s.minViewportPx(), s.cfg.MaxZoom)
	endZoom := math.Min(anchor.Zoom*s.cfg.ZoomOutFactor, fit)
	center := s.trk.Center()

	st := anchor
	st.Bearing = math.Mod(anchor.Bearing+s.cfg.OrbitDegrees*t+720.0, 360.0)
	st.Zoom = lerp(anchor.Zoom, endZoom, ease)
	st.Pitch = lerp(anchor.Pitch, math.Max(0, anchor.Pitch-s.cfg.PitchDropDegrees), ease)
	st.Lat = lerp(anchor.Lat, center.Lat, ease)
	st.Lon = lerp(anchor.Lon, center.Lon, ease)
	if anchor.AltitudeM > 0 {
		st.AltitudeM = lerp(anchor.AltitudeM, anchor.AltitudeM/s.cfg.ZoomOutFactor, ease)
	}
	st.Progress = 1
	return st
}

func (s *Synthesizer) minViewportPx() int {
	if s.cfg.Width < s.cfg.Height {
		return s.cfg.Width
	}
	return s.cfg.Height
}

// alphaFor converts a smoothing time constant and a sensitivity into a
// per-frame low-pass coefficient. Higher sensitivity means less smoothing.
func alphaFor(fps int, smoothingS, sensitivity float64) float64 {
	if smoothingS <= 0 {
		return 1.0
	}
	dt := 1.0 / math.Max(1, float64(fps))
	base := 1.0 - math.Exp(-dt/smoothingS)
	return clamp(base*math.Max(0.1, sensitivity), 0.01, 1.0)
}

// smoothstep is the monotonic ease used for intro/outro zoom and pitch.
func smoothstep(t float64) float64 {
	t = clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// metersPerPixel of web mercator at the given latitude and zoom.
func metersPerPixel(lat, zoom float64) float64 {
	return 156543.03392 * math.Cos(lat*math.Pi/180.0) / math.Pow(2, zoom)
}

// fitZoom returns the zoom at which spanM meters fill viewportPx pixels,
// clamped to [2, maxZoom].
func fitZoom(spanM float64, lat float64, viewportPx int, maxZoom float64) float64 {
	if spanM < 1 {
		spanM = 1
	}
	res := spanM / float64(viewportPx)
	zoom := math.Log2(156543.03392 * math.Cos(lat*math.Pi/180.0) / res)
	return clamp(zoom, 2.0, maxZoom)
}
