package track

import (
	"fmt"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/ivlev/trailgen/internal/geo"
)

// RoutePoint is one raw point of the recorded route. Time is zero when the
// source carries no timestamps.
type RoutePoint struct {
	geo.Point
	Time time.Time
}

// LoadGPX reads every track segment and route of a GPX file into an ordered
// point sequence. Missing elevations are backfilled from the nearest known one.
func LoadGPX(path string) ([]RoutePoint, error) {
	file, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}

	var points []RoutePoint
	var known []bool
	appendPoint := func(p gpx.GPXPoint) {
		rp := RoutePoint{Time: p.Timestamp}
		rp.Lat = p.Latitude
		rp.Lon = p.Longitude
		if p.Elevation.NotNull() {
			rp.Ele = p.Elevation.Value()
		}
		points = append(points, rp)
		known = append(known, p.Elevation.NotNull())
	}

	for _, trk := range file.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				appendPoint(p)
			}
		}
	}
	for _, rte := range file.Routes {
		for _, p := range rte.Points {
			appendPoint(p)
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points in %s", ErrInvalidRoute, path)
	}

	backfillElevations(points, known)
	return points, nil
}

// backfillElevations fills points without an <ele> tag from the closest
// preceding known value, and a leading gap from the first known one. Presence
// is tracked separately: a recorded 0 m (sea level) is a real elevation. GPX
// files from phone apps often miss elevation on the first points of a
// recording.
func backfillElevations(points []RoutePoint, known []bool) {
	firstKnown := -1
	for i := range points {
		if known[i] {
			firstKnown = i
			break
		}
	}
	if firstKnown == -1 {
		return
	}
	for i := 0; i < firstKnown; i++ {
		points[i].Ele = points[firstKnown].Ele
	}
	last := points[firstKnown].Ele
	for i := firstKnown; i < len(points); i++ {
		if known[i] {
			last = points[i].Ele
		} else {
			points[i].Ele = last
		}
	}
}
