package geospatial_test

import (
	"math"
	"testing"

	"github.com/citybikes/bikemap/internal/pkg/geospatial"
)

func TestHaversine_ZeroForIdenticalPoints(t *testing.T) {
	points := [][2]float64{
		{60.17, 24.94},
		{0, 0},
		{-33.86, 151.21},
		{43.263, -2.935},
	}
	for _, p := range points {
		d := geospatial.Haversine(p[0], p[1], p[0], p[1])
		if math.Abs(d) > 1e-6 {
			t.Errorf("Haversine(%v,%v,same) = %v, want 0", p[0], p[1], d)
		}
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	d1 := geospatial.Haversine(60.17, 24.94, 60.18, 24.95)
	d2 := geospatial.Haversine(60.18, 24.95, 60.17, 24.94)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("asymmetric: %v vs %v", d1, d2)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Helsinki central railway station to Kamppi, roughly 700 m.
	d := geospatial.Haversine(60.1719, 24.9414, 60.1687, 24.9316)
	if d < 500 || d > 900 {
		t.Errorf("Haversine = %v m, want roughly 700 m", d)
	}

	// One degree of latitude is about 111 km.
	d = geospatial.Haversine(60, 24, 61, 24)
	if d < 110_000 || d > 112_500 {
		t.Errorf("one degree of latitude = %v m, want ~111 km", d)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(60.17, 24.94, 500)
	if minLat >= 60.17 || maxLat <= 60.17 {
		t.Errorf("latitude range [%v,%v] does not contain center", minLat, maxLat)
	}
	if minLon >= 24.94 || maxLon <= 24.94 {
		t.Errorf("longitude range [%v,%v] does not contain center", minLon, maxLon)
	}
}
