package camera

import (
	"math"

	"github.com/ivlev/trailgen/internal/geo"
)

// followMinClearanceM keeps the chase camera above the terrain even when the
// geometric placement would clip into a slope.
const followMinClearanceM = 40.0

// followPose keeps the camera a fixed distance behind the current route
// position, looking at a point ahead of it. The bearing is low-pass filtered
// with the configured time constant scaled by the bearing sensitivity; the
// look-at point is panned with its own sensitivity so sharp turns do not
// recenter the shot abruptly.
func (s *Synthesizer) followPose(d float64) State {
	total := s.trk.TotalDistance()
	cur, trackBearing, _ := s.trk.PointAt(d)

	aheadM := math.Min(total, d+math.Max(5.0, s.cfg.FollowLookaheadM))
	ahead, _, _ := s.trk.PointAt(aheadM)
	rawBearing := trackBearing
	if aheadM > d {
		rawBearing = geo.BearingDeg(cur, ahead)
	}

	alphaBearing := alphaFor(s.cfg.FPS, s.cfg.FollowSmoothingSeconds, s.cfg.FollowBearingSensitivity)
	alphaPan := alphaFor(s.cfg.FPS, s.cfg.FollowSmoothingSeconds, s.cfg.FollowPanningSensitivity)
	alphaAlt := alphaFor(s.cfg.FPS, s.cfg.FollowSmoothingSeconds, 1.0)

	if !s.smooth.initialized {
		s.smooth.initialized = true
		s.smooth.bearing = rawBearing
		s.smooth.refLat = cur.Lat
		s.smooth.refLon = cur.Lon
		s.smooth.panEast = 0
		s.smooth.panNorth = 0
	} else {
		s.smooth.bearing = geo.MixBearing(s.smooth.bearing, rawBearing, alphaBearing)
		curE, curN := geo.MetersOffset(s.smooth.refLat, s.smooth.refLon, cur.Lat, cur.Lon)
		s.smooth.panEast = lerp(s.smooth.panEast, curE, alphaPan)
		s.smooth.panNorth = lerp(s.smooth.panNorth, curN, alphaPan)
	}

	targetLat, targetLon := geo.Offset(s.smooth.refLat, s.smooth.refLon, s.smooth.panEast, s.smooth.panNorth)

	// Camera sits FollowDistanceM behind the smoothed target along the
	// reversed smoothed bearing.
	heading := s.smooth.bearing * math.Pi / 180.0
	camLat, camLon := geo.Offset(targetLat, targetLon,
		-math.Sin(heading)*s.cfg.FollowDistanceM,
		-math.Cos(heading)*s.cfg.FollowDistanceM)

	st := State{
		Lat:     camLat,
		Lon:     camLon,
		Zoom:    fitZoom(2.2*s.cfg.FollowDistanceM, camLat, s.minViewportPx(), s.cfg.MaxZoom),
		Bearing: s.smooth.bearing,
		Pitch:   s.cfg.FollowPitchDegrees,
	}

	if s.terrain != nil {
		st.AltitudeM = s.followAltitude(cur.Ele, camLat, camLon, targetLat, targetLon, alphaAlt)
	}
	return st
}

// followAltitude derives the free-camera altitude from the terrain under the
// target and the camera, keeping the configured pitch geometry and a minimum
// clearance, then low-passes the result so relief does not shake the shot.
func (s *Synthesizer) followAltitude(fallbackEle, camLat, camLon, targetLat, targetLon, alpha float64) float64 {
	targetAlt := fallbackEle
	if h, ok := s.terrain.HeightAt(targetLon, targetLat); ok {
		targetAlt = h
	}
	camGround := fallbackEle
	if h, ok := s.terrain.HeightAt(camLon, camLat); ok {
		camGround = h
	}

	pitch := clamp(s.cfg.FollowPitchDegrees, 5.0, 85.0)
	desired := targetAlt + s.cfg.FollowDistanceM/math.Tan(pitch*math.Pi/180.0)
	if desired < camGround+followMinClearanceM {
		desired = camGround + followMinClearanceM
	}

	if s.smooth.altitude == 0 {
		s.smooth.altitude = desired
	} else {
		s.smooth.altitude = lerp(s.smooth.altitude, desired, alpha)
		if s.smooth.altitude < camGround+followMinClearanceM {
			s.smooth.altitude = camGround + followMinClearanceM
		}
	}
	return s.smooth.altitude
}
