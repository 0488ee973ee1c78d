package track

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ivlev/trailgen/internal/geo"
)

var (
	// ErrInvalidRoute marks a degenerate input route: unparsable, fewer than
	// two points, or zero total distance.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrOutOfRange marks a distance query outside [0, TotalDistance].
	ErrOutOfRange = errors.New("distance out of range")
)

// Track is an arc-length-parameterized route. It is built once and never
// mutated afterwards.
type Track struct {
	Points    []RoutePoint
	Distances []float64 // cumulative meters from the first point
	Bearings  []float64 // initial bearing to the next point; last repeats previous

	elapsed []float64 // cumulative seconds from the first point; nil without timestamps
}

// Build validates raw points and derives cumulative distances and bearings.
func Build(points []RoutePoint) (*Track, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidRoute, len(points))
	}

	distances := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		distances[i] = distances[i-1] + geo.HaversineM(points[i-1].Point, points[i].Point)
	}
	if distances[len(distances)-1] <= 0 {
		return nil, fmt.Errorf("%w: total distance is zero", ErrInvalidRoute)
	}

	bearings := make([]float64, len(points))
	for i := 0; i < len(points)-1; i++ {
		bearings[i] = geo.BearingDeg(points[i].Point, points[i+1].Point)
	}
	bearings[len(bearings)-1] = bearings[len(bearings)-2]

	t := &Track{Points: points, Distances: distances, Bearings: bearings}
	t.elapsed = buildElapsed(points)
	return t, nil
}

// buildElapsed returns cumulative seconds when every point is timestamped and
// the timestamps move forward. Otherwise progress falls back to arc length.
func buildElapsed(points []RoutePoint) []float64 {
	elapsed := make([]float64, len(points))
	for i, p := range points {
		if p.Time.IsZero() {
			return nil
		}
		if i == 0 {
			continue
		}
		dt := p.Time.Sub(points[i-1].Time)
		if dt < 0 {
			return nil
		}
		elapsed[i] = elapsed[i-1] + dt.Seconds()
	}
	if elapsed[len(elapsed)-1] <= 0 {
		return nil
	}
	return elapsed
}

// TotalDistance is the route length in meters.
func (t *Track) TotalDistance() float64 {
	return t.Distances[len(t.Distances)-1]
}

// TotalElapsed reports the recorded duration of the route and whether
// timestamps were usable.
func (t *Track) TotalElapsed() (time.Duration, bool) {
	if t.elapsed == nil {
		return 0, false
	}
	return time.Duration(t.elapsed[len(t.elapsed)-1] * float64(time.Second)), true
}

// PointAt returns the interpolated position and local bearing at distance d
// meters from the start. d must lie within [0, TotalDistance].
func (t *Track) PointAt(d float64) (geo.Point, float64, error) {
	if d < 0 || d > t.TotalDistance() {
		return geo.Point{}, 0, fmt.Errorf("%w: %.1fm of %.1fm", ErrOutOfRange, d, t.TotalDistance())
	}
	if d == 0 {
		return t.Points[0].Point, t.Bearings[0], nil
	}
	if d == t.TotalDistance() {
		last := len(t.Points) - 1
		return t.Points[last].Point, t.Bearings[last], nil
	}

	idx := sort.SearchFloat64s(t.Distances, d)
	if t.Distances[idx] == d {
		return t.Points[idx].Point, t.Bearings[idx], nil
	}

	prev := t.Points[idx-1].Point
	next := t.Points[idx].Point
	span := t.Distances[idx] - t.Distances[idx-1]
	ratio := 0.0
	if span > 0 {
		ratio = (d - t.Distances[idx-1]) / span
	}
	p := geo.Point{
		Lat: prev.Lat + ratio*(next.Lat-prev.Lat),
		Lon: prev.Lon + ratio*(next.Lon-prev.Lon),
		Ele: prev.Ele + ratio*(next.Ele-prev.Ele),
	}
	return p, t.Bearings[idx-1], nil
}

// DistanceAtFraction maps a timeline fraction in [0,1] to a distance along the
// route. With usable timestamps the mapping follows real elapsed time, so the
// reveal speeds up and slows down the way the recording did; otherwise it is
// linear in arc length.
func (t *Track) DistanceAtFraction(frac float64) float64 {
	if frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return t.TotalDistance()
	}
	if t.elapsed == nil {
		return frac * t.TotalDistance()
	}

	target := frac * t.elapsed[len(t.elapsed)-1]
	idx := sort.SearchFloat64s(t.elapsed, target)
	if idx <= 0 {
		return 0
	}
	if idx >= len(t.elapsed) {
		return t.TotalDistance()
	}
	span := t.elapsed[idx] - t.elapsed[idx-1]
	ratio := 0.0
	if span > 0 {
		ratio = (target - t.elapsed[idx-1]) / span
	}
	return t.Distances[idx-1] + ratio*(t.Distances[idx]-t.Distances[idx-1])
}

// Center returns the midpoint of the route's bounding box.
func (t *Track) Center() geo.Point {
	minLat, maxLat := t.Points[0].Lat, t.Points[0].Lat
	minLon, maxLon := t.Points[0].Lon, t.Points[0].Lon
	for _, p := range t.Points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}
	return geo.Point{Lat: (minLat + maxLat) / 2, Lon: (minLon + maxLon) / 2}
}

// MaxRadiusM returns the largest distance from the bounding-box center to any
// route point. Used to frame the whole route in the outro.
func (t *Track) MaxRadiusM() float64 {
	center := t.Center()
	max := 0.0
	for _, p := range t.Points {
		if d := geo.HaversineM(center, p.Point); d > max {
			max = d
		}
	}
	return max
}

// GeoJSON returns the route as a LineString FeatureCollection for the
// rendering surface.
func (t *Track) GeoJSON() map[string]any {
	coords := make([][]float64, len(t.Points))
	for i, p := range t.Points {
		coords[i] = []float64{p.Lon, p.Lat}
	}
	return map[string]any{
		"type": "FeatureCollection",
		"features": []any{
			map[string]any{
				"type":       "Feature",
				"geometry":   map[string]any{"type": "LineString", "coordinates": coords},
				"properties": map[string]any{},
			},
		},
	}
}
