package track

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const gpxTrack = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="46.000" lon="7.000"><ele>512</ele><time>2026-06-01T09:00:00Z</time></trkpt>
    <trkpt lat="46.001" lon="7.000"><ele>515</ele><time>2026-06-01T09:00:30Z</time></trkpt>
    <trkpt lat="46.002" lon="7.001"><ele>521</ele><time>2026-06-01T09:01:10Z</time></trkpt>
  </trkseg></trk>
</gpx>`

const gpxRouteOnly = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <rtept lat="46.100" lon="7.100"/>
    <rtept lat="46.110" lon="7.100"/>
  </rte>
</gpx>`

const gpxMissingEle = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="46.000" lon="7.000"/>
    <trkpt lat="46.001" lon="7.000"><ele>600</ele></trkpt>
    <trkpt lat="46.002" lon="7.000"/>
    <trkpt lat="46.003" lon="7.000"><ele>610</ele></trkpt>
  </trkseg></trk>
</gpx>`

const gpxSeaLevel = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="53.300" lon="4.900"><ele>12</ele></trkpt>
    <trkpt lat="53.301" lon="4.900"><ele>0</ele></trkpt>
    <trkpt lat="53.302" lon="4.900"/>
    <trkpt lat="53.303" lon="4.900"><ele>-3</ele></trkpt>
  </trkseg></trk>
</gpx>`

func writeGPX(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "route.gpx")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
	return path
}

func TestLoadGPXTrack(t *testing.T) {
	points, err := LoadGPX(writeGPX(t, gpxTrack))
	if err != nil {
		t.Fatalf("LoadGPX: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Lat != 46.0 || points[0].Lon != 7.0 || points[0].Ele != 512 {
		t.Errorf("first point wrong: %+v", points[0])
	}
	if points[1].Time.IsZero() {
		t.Error("timestamps must be carried through")
	}

	trk, err := Build(points)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if dur, ok := trk.TotalElapsed(); !ok || dur.Seconds() != 70 {
		t.Errorf("expected 70s recorded duration, got %v/%v", dur, ok)
	}
}

func TestLoadGPXRouteOnly(t *testing.T) {
	points, err := LoadGPX(writeGPX(t, gpxRouteOnly))
	if err != nil {
		t.Fatalf("LoadGPX: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 route points, got %d", len(points))
	}
	if !points[0].Time.IsZero() {
		t.Error("route points carry no timestamps")
	}
}

func TestLoadGPXBackfillsElevation(t *testing.T) {
	points, err := LoadGPX(writeGPX(t, gpxMissingEle))
	if err != nil {
		t.Fatalf("LoadGPX: %v", err)
	}
	if points[0].Ele != 600 {
		t.Errorf("leading gap must take the first known elevation, got %.0f", points[0].Ele)
	}
	if points[2].Ele != 600 {
		t.Errorf("interior gap must take the preceding elevation, got %.0f", points[2].Ele)
	}
	if points[3].Ele != 610 {
		t.Errorf("known elevation must be untouched, got %.0f", points[3].Ele)
	}
}

func TestLoadGPXKeepsSeaLevelElevation(t *testing.T) {
	points, err := LoadGPX(writeGPX(t, gpxSeaLevel))
	if err != nil {
		t.Fatalf("LoadGPX: %v", err)
	}
	if points[1].Ele != 0 {
		t.Errorf("recorded 0 m is a real elevation, got %.0f", points[1].Ele)
	}
	if points[2].Ele != 0 {
		t.Errorf("gap after a sea-level point must backfill to 0, got %.0f", points[2].Ele)
	}
	if points[3].Ele != -3 {
		t.Errorf("below-sea-level elevation must be untouched, got %.0f", points[3].Ele)
	}
}

func TestLoadGPXErrors(t *testing.T) {
	if _, err := LoadGPX(filepath.Join(t.TempDir(), "missing.gpx")); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("missing file: expected ErrInvalidRoute, got %v", err)
	}

	empty := `<?xml version="1.0"?><gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1"></gpx>`
	if _, err := LoadGPX(writeGPX(t, empty)); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("empty file: expected ErrInvalidRoute, got %v", err)
	}
}
