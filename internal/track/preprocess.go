package track

import (
	"time"

	"github.com/ivlev/trailgen/internal/geo"
)

// Resample rebuilds the point sequence with roughly stepM meters between
// consecutive points, interpolating linearly inside segments. The first and
// last points are always kept. Dense resampling keeps the camera speed even
// regardless of how irregular the recording was.
func Resample(points []RoutePoint, stepM float64) []RoutePoint {
	if len(points) < 2 || stepM <= 0 {
		return points
	}

	distances := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		distances[i] = distances[i-1] + geo.HaversineM(points[i-1].Point, points[i].Point)
	}
	total := distances[len(distances)-1]
	if total == 0 {
		return points
	}

	result := []RoutePoint{points[0]}
	target := stepM
	idx := 1
	for target < total && idx < len(points) {
		for idx < len(points) && distances[idx] < target {
			idx++
		}
		if idx >= len(points) {
			break
		}
		prev, cur := points[idx-1], points[idx]
		span := distances[idx] - distances[idx-1]
		ratio := 0.0
		if span > 0 {
			ratio = (target - distances[idx-1]) / span
		}
		result = append(result, blend(prev, cur, 1-ratio, ratio))
		target += stepM
	}
	result = append(result, points[len(points)-1])
	return result
}

// Chaikin applies corner-cutting smoothing to the route. Each iteration
// replaces every segment with two points at 1/4 and 3/4 of its length.
func Chaikin(points []RoutePoint, iterations int) []RoutePoint {
	if len(points) < 3 || iterations <= 0 {
		return points
	}
	current := points
	for it := 0; it < iterations; it++ {
		next := make([]RoutePoint, 0, len(current)*2)
		next = append(next, current[0])
		for i := 0; i < len(current)-1; i++ {
			next = append(next,
				blend(current[i], current[i+1], 0.75, 0.25),
				blend(current[i], current[i+1], 0.25, 0.75),
			)
		}
		next = append(next, current[len(current)-1])
		current = next
	}
	return current
}

// blend mixes two route points with the given weights (wa+wb == 1).
// Timestamps are interpolated only when both points carry one.
func blend(a, b RoutePoint, wa, wb float64) RoutePoint {
	p := RoutePoint{}
	p.Lat = wa*a.Lat + wb*b.Lat
	p.Lon = wa*a.Lon + wb*b.Lon
	p.Ele = wa*a.Ele + wb*b.Ele
	if !a.Time.IsZero() && !b.Time.IsZero() {
		p.Time = a.Time.Add(time.Duration(wb * float64(b.Time.Sub(a.Time))))
	}
	return p
}
