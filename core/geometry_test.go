package core

import (
	"math"
	"testing"
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
)

func TestProjectWrapsLongitude(t *testing.T) {
	cases := []float64{0, math.Pi, -0.1, -math.Pi, 2 * math.Pi, 7.5, -13.2, -1e-18, 4 * math.Pi}
	for _, lon := range cases {
		got := Project(model.PositionSample{Longitude: lon}).Lon
		if got < 0 || got >= 2*math.Pi {
			t.Errorf("Project(lon=%v).Lon = %v, want in [0, 2π)", lon, got)
		}
	}
}

func TestProjectKeepsLatitudeAndDistance(t *testing.T) {
	s := model.PositionSample{Longitude: -math.Pi / 2, Latitude: 0.2, DistanceKm: 1.5e8}
	got := Project(s)
	if math.Abs(got.Lon-3*math.Pi/2) > 1e-12 {
		t.Fatalf("Lon = %v, want 3π/2", got.Lon)
	}
	if got.Lat != 0.2 || got.DistanceKm != 1.5e8 {
		t.Fatalf("Project changed latitude/distance: %+v", got)
	}
}

func TestVec3Spherical(t *testing.T) {
	lon, lat, r := Vec3{X: 0, Y: -2, Z: 0}.Spherical()
	if math.Abs(lon-3*math.Pi/2) > 1e-12 || lat != 0 || r != 2 {
		t.Fatalf("Spherical = (%v, %v, %v), want (3π/2, 0, 2)", lon, lat, r)
	}

	_, lat, _ = Vec3{X: 1, Y: 0, Z: 1}.Spherical()
	if math.Abs(lat-math.Pi/4) > 1e-12 {
		t.Fatalf("lat = %v, want π/4", lat)
	}

	lon, lat, r = Vec3{}.Spherical()
	if lon != 0 || lat != 0 || r != 0 {
		t.Fatalf("origin should map to zeros, got (%v, %v, %v)", lon, lat, r)
	}
}

func TestProjectAllKeysByBody(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	proj := ProjectAll(map[string]model.Trajectory{
		"A": {{Time: t0, Longitude: -math.Pi}},
		"B": {{Time: t0, Longitude: 3 * math.Pi}},
	})
	if len(proj) != 2 || len(proj["A"]) != 1 || len(proj["B"]) != 1 {
		t.Fatalf("unexpected projection table: %+v", proj)
	}
	if math.Abs(proj["A"][0].Lon-math.Pi) > 1e-12 || math.Abs(proj["B"][0].Lon-math.Pi) > 1e-12 {
		t.Fatalf("both bodies should project to π: %+v", proj)
	}
}
