package geo

import (
	"math"
	"testing"
)

func TestHaversineM(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
	}{
		{"same point", Point{Lat: 46.5, Lon: 7.5}, Point{Lat: 46.5, Lon: 7.5}, 0},
		{"one degree north at equator", Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0}, 111194.9},
		{"alps segment", Point{Lat: 46.0, Lon: 7.0}, Point{Lat: 46.01, Lon: 7.0}, 1111.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineM(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1.0 {
				t.Errorf("expected ~%.1fm, got %.1fm", tt.expected, got)
			}
		})
	}
}

func TestBearingDeg(t *testing.T) {
	origin := Point{Lat: 46.0, Lon: 7.0}

	tests := []struct {
		name     string
		to       Point
		expected float64
	}{
		{"north", Point{Lat: 46.01, Lon: 7.0}, 0},
		{"east", Point{Lat: 46.0, Lon: 7.01}, 90},
		{"south", Point{Lat: 45.99, Lon: 7.0}, 180},
		{"west", Point{Lat: 46.0, Lon: 6.99}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDeg(origin, tt.to)
			if BearingDiffDeg(got, tt.expected) > 0.1 {
				t.Errorf("expected ~%.0f°, got %.2f°", tt.expected, got)
			}
		})
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	lat, lon := 46.5, 7.5
	newLat, newLon := Offset(lat, lon, 500, -300)
	east, north := MetersOffset(lat, lon, newLat, newLon)

	if math.Abs(east-500) > 1.0 {
		t.Errorf("east: expected ~500m, got %.2fm", east)
	}
	if math.Abs(north+300) > 1.0 {
		t.Errorf("north: expected ~-300m, got %.2fm", north)
	}
}

func TestMixBearingAcrossNorth(t *testing.T) {
	// Blending 350° and 10° must cross 0, not take the long way through 180.
	got := MixBearing(350, 10, 0.5)
	if BearingDiffDeg(got, 0) > 0.5 {
		t.Errorf("expected ~0°, got %.2f°", got)
	}

	if got := MixBearing(350, 10, 1.0); BearingDiffDeg(got, 10) > 0.001 {
		t.Errorf("alpha=1 should return cur, got %.4f°", got)
	}
	if got := MixBearing(350, 10, 0.0); BearingDiffDeg(got, 350) > 0.001 {
		t.Errorf("alpha=0 should return prev, got %.4f°", got)
	}
}

func TestMixBearingOpposite(t *testing.T) {
	// Opposite bearings cancel on the unit circle, leaving only floating-point
	// residue; the current value wins instead of the residue's direction.
	tests := []struct{ prev, cur float64 }{
		{0, 180},
		{180, 0},
		{90, 270},
		{45, 225},
		{350, 170},
	}
	for _, tt := range tests {
		if got := MixBearing(tt.prev, tt.cur, 0.5); got != tt.cur {
			t.Errorf("MixBearing(%g, %g, 0.5): expected %g°, got %.2f°", tt.prev, tt.cur, tt.cur, got)
		}
	}
}

func TestBearingDiffDeg(t *testing.T) {
	tests := []struct {
		a, b     float64
		expected float64
	}{
		{0, 0, 0},
		{0, 90, 90},
		{350, 10, 20},
		{10, 350, 20},
		{0, 180, 180},
		{359, 1, 2},
	}

	for _, tt := range tests {
		if got := BearingDiffDeg(tt.a, tt.b); math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("BearingDiffDeg(%g, %g): expected %g, got %g", tt.a, tt.b, tt.expected, got)
		}
	}
}
