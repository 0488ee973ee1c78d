package camera

import (
	"math"

	"github.com/ivlev/trailgen/internal/geo"
)

// autoBearingSmoothingS is the light low-pass applied to the auto-mode
// bearing and pan. The auto policy already glides by construction, so the
// constant is not configurable.
const autoBearingSmoothingS = 0.8

// autoMinClearanceM keeps the overview camera above ridges that rise between
// route samples.
const autoMinClearanceM = 120.0

// autoPose frames a forward-looking window of the route: the camera centers
// on the window's bounding box and picks a zoom that keeps the upcoming
// route visible, while bearing and pan follow the local direction with light
// smoothing.
func (s *Synthesizer) autoPose(d float64) State {
	total := s.trk.TotalDistance()
	look := s.cfg.LookaheadM
	if look < 50 {
		look = 50
	}

	cur, rawBearing, _ := s.trk.PointAt(d)
	mid, _, _ := s.trk.PointAt(math.Min(total, d+look/2))
	far, _, _ := s.trk.PointAt(math.Min(total, d+look))

	// Bounding box of the window, center in the middle of it.
	minLat := math.Min(cur.Lat, math.Min(mid.Lat, far.Lat))
	maxLat := math.Max(cur.Lat, math.Max(mid.Lat, far.Lat))
	minLon := math.Min(cur.Lon, math.Min(mid.Lon, far.Lon))
	maxLon := math.Max(cur.Lon, math.Max(mid.Lon, far.Lon))
	centerLat := (minLat + maxLat) / 2
	centerLon := (minLon + maxLon) / 2

	eastSpan, northSpan := geo.MetersOffset(minLat, minLon, maxLat, maxLon)
	span := math.Max(math.Abs(eastSpan), math.Abs(northSpan))
	// A straight segment collapses the box across-track; keep a floor so the
	// zoom does not pump on straights.
	span = math.Max(span, look*0.8)

	alpha := alphaFor(s.cfg.FPS, autoBearingSmoothingS, 1.0)
	if !s.smooth.initialized {
		s.smooth.initialized = true
		s.smooth.bearing = rawBearing
		s.smooth.refLat = centerLat
		s.smooth.refLon = centerLon
		s.smooth.panEast = 0
		s.smooth.panNorth = 0
	} else {
		s.smooth.bearing = geo.MixBearing(s.smooth.bearing, rawBearing, alpha)
		curE, curN := geo.MetersOffset(s.smooth.refLat, s.smooth.refLon, centerLat, centerLon)
		s.smooth.panEast = lerp(s.smooth.panEast, curE, alpha)
		s.smooth.panNorth = lerp(s.smooth.panNorth, curN, alpha)
	}
	smLat, smLon := geo.Offset(s.smooth.refLat, s.smooth.refLon, s.smooth.panEast, s.smooth.panNorth)

	st := State{
		Lat:     smLat,
		Lon:     smLon,
		Zoom:    fitZoom(span*1.8, smLat, s.minViewportPx(), s.cfg.MaxZoom),
		Bearing: s.smooth.bearing,
		Pitch:   s.cfg.TargetPitch,
	}

	if s.terrain != nil {
		st.AltitudeM = s.autoAltitude(cur.Ele, smLat, smLon, span, alpha)
	}
	return st
}

// autoAltitude lifts the overview camera above the relief under the window
// center, high enough to keep the whole forward window framed at the target
// pitch. Low-passed like the pan so terrain steps do not bounce the shot.
func (s *Synthesizer) autoAltitude(fallbackEle, lat, lon, span, alpha float64) float64 {
	ground := fallbackEle
	if h, ok := s.terrain.HeightAt(lon, lat); ok {
		ground = h
	}

	pitch := clamp(s.cfg.TargetPitch, 5.0, 85.0)
	desired := ground + span/math.Tan(pitch*math.Pi/180.0)
	if desired < ground+autoMinClearanceM {
		desired = ground + autoMinClearanceM
	}

	if s.smooth.altitude == 0 {
		s.smooth.altitude = desired
	} else {
		s.smooth.altitude = lerp(s.smooth.altitude, desired, alpha)
		if s.smooth.altitude < ground+autoMinClearanceM {
			s.smooth.altitude = ground + autoMinClearanceM
		}
	}
	return s.smooth.altitude
}
