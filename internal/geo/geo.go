package geo

import "math"

// EarthRadiusM is the mean Earth radius used for all spherical math.
const EarthRadiusM = 6371000.0

// Point is a geographic position. Elevation is meters above sea level.
type Point struct {
	Lat float64
	Lon float64
	Ele float64
}

// HaversineM returns the great-circle distance between a and b in meters.
func HaversineM(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Min(1.0, math.Sqrt(h)))
}

// BearingDeg returns the initial compass bearing from a to b in degrees [0, 360).
func BearingDeg(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(degrees(math.Atan2(y, x))+360.0, 360.0)
}

// Offset shifts (lat, lon) by the given east/north meters on the sphere.
func Offset(lat, lon, eastM, northM float64) (float64, float64) {
	dLat := (northM / EarthRadiusM) * (180.0 / math.Pi)
	dLon := (eastM / (EarthRadiusM * math.Cos(radians(lat)))) * (180.0 / math.Pi)
	return lat + dLat, lon + dLon
}

// MetersOffset returns the approximate east/north meters from (fromLat, fromLon)
// to (toLat, toLon). Accurate at the scales a single route covers.
func MetersOffset(fromLat, fromLon, toLat, toLon float64) (eastM, northM float64) {
	north := radians(toLat-fromLat) * EarthRadiusM
	east := radians(toLon-fromLon) * EarthRadiusM * math.Cos(radians(fromLat))
	return east, north
}

// MixBearing blends two compass bearings on the unit circle so the result
// never takes the long way around 0/360. alpha=1 returns cur, alpha=0 prev.
func MixBearing(prevDeg, curDeg, alpha float64) float64 {
	prev := radians(prevDeg)
	cur := radians(curDeg)
	x := math.Cos(prev)*(1.0-alpha) + math.Cos(cur)*alpha
	y := math.Sin(prev)*(1.0-alpha) + math.Sin(cur)*alpha
	// Opposite bearings cancel to a vector of rounding noise; atan2 of that
	// noise points anywhere.
	if math.Hypot(x, y) < 1e-9 {
		return curDeg
	}
	return math.Mod(degrees(math.Atan2(y, x))+360.0, 360.0)
}

// BearingDiffDeg returns the smallest absolute angle between two bearings, in degrees.
func BearingDiffDeg(aDeg, bDeg float64) float64 {
	diff := math.Mod(bDeg-aDeg+540.0, 360.0) - 180.0
	return math.Abs(diff)
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }
