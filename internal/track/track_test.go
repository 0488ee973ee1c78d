package track

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ivlev/trailgen/internal/geo"
)

// straightRoute builds an evenly spaced northbound route.
func straightRoute(n int, stepDeg float64) []RoutePoint {
	points := make([]RoutePoint, n)
	for i := range points {
		points[i] = RoutePoint{Point: geo.Point{Lat: 46.0 + float64(i)*stepDeg, Lon: 7.0, Ele: 500}}
	}
	return points
}

func TestBuildRejectsDegenerateRoutes(t *testing.T) {
	tests := []struct {
		name   string
		points []RoutePoint
	}{
		{"empty", nil},
		{"single point", []RoutePoint{{Point: geo.Point{Lat: 46, Lon: 7}}}},
		{"zero distance", []RoutePoint{
			{Point: geo.Point{Lat: 46, Lon: 7}},
			{Point: geo.Point{Lat: 46, Lon: 7}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.points)
			if !errors.Is(err, ErrInvalidRoute) {
				t.Errorf("expected ErrInvalidRoute, got %v", err)
			}
		})
	}
}

func TestBuildDistancesMonotonic(t *testing.T) {
	trk, err := Build(straightRoute(20, 0.001))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 1; i < len(trk.Distances); i++ {
		if trk.Distances[i] <= trk.Distances[i-1] {
			t.Fatalf("distances not strictly increasing at %d: %.2f <= %.2f", i, trk.Distances[i], trk.Distances[i-1])
		}
	}
	if trk.TotalDistance() <= 0 {
		t.Errorf("total distance must be positive, got %.2f", trk.TotalDistance())
	}
}

func TestPointAtEndpoints(t *testing.T) {
	points := straightRoute(5, 0.001)
	trk, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	p, bearing, err := trk.PointAt(0)
	if err != nil {
		t.Fatalf("PointAt(0): %v", err)
	}
	if p != points[0].Point {
		t.Errorf("PointAt(0) should return the first point, got %+v", p)
	}
	if geo.BearingDiffDeg(bearing, 0) > 0.1 {
		t.Errorf("northbound route should start with bearing ~0°, got %.2f°", bearing)
	}

	p, _, err = trk.PointAt(trk.TotalDistance())
	if err != nil {
		t.Fatalf("PointAt(total): %v", err)
	}
	if p != points[len(points)-1].Point {
		t.Errorf("PointAt(total) should return the last point, got %+v", p)
	}
}

func TestPointAtInterpolates(t *testing.T) {
	trk, err := Build(straightRoute(2, 0.01))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	p, _, err := trk.PointAt(trk.TotalDistance() / 2)
	if err != nil {
		t.Fatalf("PointAt(mid): %v", err)
	}
	if math.Abs(p.Lat-46.005) > 1e-6 {
		t.Errorf("midpoint latitude: expected 46.005, got %.6f", p.Lat)
	}
}

func TestPointAtOutOfRange(t *testing.T) {
	trk, err := Build(straightRoute(3, 0.001))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, d := range []float64{-1, trk.TotalDistance() + 1} {
		if _, _, err := trk.PointAt(d); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("PointAt(%.1f): expected ErrOutOfRange, got %v", d, err)
		}
	}
}

func TestDistanceAtFractionLinear(t *testing.T) {
	trk, err := Build(straightRoute(10, 0.001))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := trk.DistanceAtFraction(0); got != 0 {
		t.Errorf("fraction 0: expected 0, got %.2f", got)
	}
	if got := trk.DistanceAtFraction(1); got != trk.TotalDistance() {
		t.Errorf("fraction 1: expected total, got %.2f", got)
	}
	if got := trk.DistanceAtFraction(0.5); math.Abs(got-trk.TotalDistance()/2) > 0.01 {
		t.Errorf("fraction 0.5: expected half, got %.2f", got)
	}
}

func TestDistanceAtFractionTimeWeighted(t *testing.T) {
	// Two equal-length segments: the first recorded in 10s, the second in 30s.
	// At half the timeline the reveal has passed the first segment entirely.
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	points := []RoutePoint{
		{Point: geo.Point{Lat: 46.00, Lon: 7.0}, Time: base},
		{Point: geo.Point{Lat: 46.01, Lon: 7.0}, Time: base.Add(10 * time.Second)},
		{Point: geo.Point{Lat: 46.02, Lon: 7.0}, Time: base.Add(40 * time.Second)},
	}
	trk, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if dur, ok := trk.TotalElapsed(); !ok || dur != 40*time.Second {
		t.Fatalf("TotalElapsed: expected 40s/true, got %v/%v", dur, ok)
	}

	// 50% of 40s = 20s = first segment (10s) plus a third of the second.
	got := trk.DistanceAtFraction(0.5)
	seg := trk.TotalDistance() / 2
	expected := seg + seg/3
	if math.Abs(got-expected) > seg*0.01 {
		t.Errorf("time-weighted fraction 0.5: expected %.1fm, got %.1fm", expected, got)
	}
}

func TestBuildElapsedIgnoresPartialTimestamps(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	points := straightRoute(4, 0.001)
	points[0].Time = base
	points[1].Time = base.Add(time.Minute)
	// points[2] and [3] untimed

	trk, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := trk.TotalElapsed(); ok {
		t.Error("partial timestamps must disable time weighting")
	}

	// Falls back to linear arc length.
	if got := trk.DistanceAtFraction(0.25); math.Abs(got-trk.TotalDistance()/4) > 0.01 {
		t.Errorf("expected linear fallback, got %.2fm of %.2fm", got, trk.TotalDistance())
	}
}

func TestCenterAndMaxRadius(t *testing.T) {
	points := []RoutePoint{
		{Point: geo.Point{Lat: 46.00, Lon: 7.00}},
		{Point: geo.Point{Lat: 46.02, Lon: 7.02}},
	}
	trk, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	c := trk.Center()
	if math.Abs(c.Lat-46.01) > 1e-9 || math.Abs(c.Lon-7.01) > 1e-9 {
		t.Errorf("center: expected (46.01, 7.01), got (%.4f, %.4f)", c.Lat, c.Lon)
	}

	r := trk.MaxRadiusM()
	half := trk.TotalDistance() / 2
	if math.Abs(r-half) > half*0.01 {
		t.Errorf("radius of a straight line should be half its length, got %.1fm of %.1fm", r, half)
	}
}

func TestGeoJSONShape(t *testing.T) {
	trk, err := Build(straightRoute(3, 0.001))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc := trk.GeoJSON()
	if doc["type"] != "FeatureCollection" {
		t.Fatalf("expected FeatureCollection, got %v", doc["type"])
	}
	features := doc["features"].([]any)
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	coords := geom["coordinates"].([][]float64)
	if len(coords) != 3 {
		t.Fatalf("expected 3 coordinates, got %d", len(coords))
	}
	// GeoJSON order is lon, lat.
	if coords[0][0] != 7.0 || coords[0][1] != 46.0 {
		t.Errorf("expected [lon, lat] order, got %v", coords[0])
	}
}
