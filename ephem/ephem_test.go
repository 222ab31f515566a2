package ephem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// ISS element set near its epoch (2008-09-20).
var issTLE = TLE{
	Name:  "ISS",
	Line1: "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
	Line2: "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
}

func TestEarthHeliocentricAtEquinox(t *testing.T) {
	at := time.Date(2025, 3, 20, 9, 1, 0, 0, time.UTC)
	lon, lat, r := EarthHeliocentric(at).Spherical()
	if d := math.Abs(core.Degrees(lon) - 180); d > 0.5 {
		t.Fatalf("Earth longitude at March equinox = %.3f°, want ~180°", core.Degrees(lon))
	}
	if lat != 0 {
		t.Fatalf("Earth latitude = %v, want 0", lat)
	}
	if r < 0.98*auKm || r > 1.02*auKm {
		t.Fatalf("Earth distance = %.0f km, want ~1 AU", r)
	}
}

func TestEquatorialToEcliptic(t *testing.T) {
	eps := core.Radians(23.439)
	got := EquatorialToEcliptic(core.Vec3{Z: 1}, eps)
	if math.Abs(got.Y-math.Sin(eps)) > 1e-12 || math.Abs(got.Z-math.Cos(eps)) > 1e-12 || got.X != 0 {
		t.Fatalf("rotated pole = %+v", got)
	}
	v := core.Vec3{X: 3, Y: -4, Z: 12}
	if math.Abs(EquatorialToEcliptic(v, eps).Norm()-v.Norm()) > 1e-9 {
		t.Fatalf("rotation should preserve the norm")
	}
}

func TestEclipticToHCI(t *testing.T) {
	node := core.Radians(solarNodeLonDeg)
	got := EclipticToHCI(core.Vec3{X: math.Cos(node), Y: math.Sin(node)})
	if math.Abs(got.X-1) > 1e-12 || math.Abs(got.Y) > 1e-12 || math.Abs(got.Z) > 1e-12 {
		t.Fatalf("ascending node should map to +X, got %+v", got)
	}
	_, lat, _ := EclipticToHCI(core.Vec3{Z: 1}).Spherical()
	if math.Abs(core.Degrees(lat)-(90-solarInclinationDeg)) > 1e-9 {
		t.Fatalf("ecliptic pole latitude = %v°", core.Degrees(lat))
	}
}

func TestTLEProviderTrajectory(t *testing.T) {
	p, err := NewTLEProvider(issTLE)
	if err != nil {
		t.Fatalf("NewTLEProvider: %v", err)
	}
	start := time.Date(2008, 9, 20, 12, 0, 0, 0, time.UTC)
	grid, _ := timectrl.NewGrid(start, start.Add(2*time.Hour), time.Hour)

	traj, err := p.Trajectory(context.Background(), "ISS", grid)
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if len(traj) != 3 {
		t.Fatalf("len(traj) = %d, want 3", len(traj))
	}
	for i, s := range traj {
		earth := EclipticToHCI(EarthHeliocentric(s.Time))
		pos := sampleVec(s)
		alt := core.Vec3{X: pos.X - earth.X, Y: pos.Y - earth.Y, Z: pos.Z - earth.Z}.Norm()
		if alt < 6500 || alt > 7100 {
			t.Fatalf("sample %d geocentric distance = %.0f km, want low Earth orbit", i, alt)
		}
	}

	if _, err := p.Trajectory(context.Background(), "Hubble", grid); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
}

func sampleVec(s model.PositionSample) core.Vec3 {
	cl := math.Cos(s.Latitude)
	return core.Vec3{
		X: s.DistanceKm * cl * math.Cos(s.Longitude),
		Y: s.DistanceKm * cl * math.Sin(s.Longitude),
		Z: s.DistanceKm * math.Sin(s.Latitude),
	}
}

func TestTLEValidate(t *testing.T) {
	bad := []TLE{
		{Line1: issTLE.Line1, Line2: issTLE.Line2},
		{Name: "x", Line1: "1 short", Line2: issTLE.Line2},
		{Name: "x", Line1: issTLE.Line1, Line2: issTLE.Line1},
	}
	for i, tle := range bad {
		if _, err := NewTLEProvider(tle); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestCatalog(t *testing.T) {
	cat := DefaultCatalog()
	psp, ok := cat.Lookup("PSP")
	if !ok || psp.HorizonsID != "Parker Solar Probe" {
		t.Fatalf("PSP entry = %+v, %v", psp, ok)
	}
	names := cat.Names()
	if len(names) != 15 || names[0] != "BepiColombo" || names[len(names)-1] != model.SunBody {
		t.Fatalf("unexpected catalogue order %v", names)
	}

	inside, _ := timectrl.NewGrid(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), time.Hour)
	late, _ := timectrl.NewGrid(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), time.Hour)
	if !psp.Covers(inside) || psp.Covers(late) {
		t.Fatalf("PSP coverage check is wrong")
	}
	earth, _ := cat.Lookup("Earth")
	if !earth.Covers(late) || earth.CoverageString() != "NA to NA" {
		t.Fatalf("Earth should have open coverage, got %s", earth.CoverageString())
	}
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	inner Provider
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Trajectory(ctx, body, grid)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]model.Trajectory
}

func (m *memoryCache) LoadTrajectory(_ context.Context, body, gridKey string) (model.Trajectory, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	traj, ok := m.entries[body+"|"+gridKey]
	return traj, ok, nil
}

func (m *memoryCache) SaveTrajectory(_ context.Context, body, gridKey, _ string, traj model.Trajectory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]model.Trajectory)
	}
	m.entries[body+"|"+gridKey] = traj
	return nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{inner: SunProvider{}}
	p := NewCachedProvider(inner, &memoryCache{}, nil)
	grid := testGrid(t)

	for range 3 {
		traj, err := p.Trajectory(context.Background(), model.SunBody, grid)
		if err != nil || len(traj) != 3 {
			t.Fatalf("Trajectory = %d samples, %v", len(traj), err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner provider called %d times, want 1", inner.calls)
	}
}

func TestFetcherSkipsUnknownBodies(t *testing.T) {
	router := NewRouter(nil)
	router.Route(model.SunBody, SunProvider{})
	tle, err := NewTLEProvider(issTLE)
	if err != nil {
		t.Fatalf("NewTLEProvider: %v", err)
	}
	router.Route("ISS", tle)

	start := time.Date(2008, 9, 20, 12, 0, 0, 0, time.UTC)
	grid, _ := timectrl.NewGrid(start, start.Add(3*time.Hour), time.Hour)
	f := &Fetcher{Provider: router, Catalog: DefaultCatalog()}

	trajs, skipped, err := f.Fetch(context.Background(), []string{model.SunBody, "Pluto", "ISS", model.SunBody}, grid)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(trajs) != 2 || len(trajs[model.SunBody]) != 4 || len(trajs["ISS"]) != 4 {
		t.Fatalf("unexpected trajectories %v", trajs)
	}
	if len(skipped) != 1 || skipped[0] != "Pluto" {
		t.Fatalf("skipped = %v, want [Pluto]", skipped)
	}
	if err := core.ValidateTrajectories(trajs); err != nil {
		t.Fatalf("fetched trajectories should share the grid: %v", err)
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Trajectory(context.Context, string, timectrl.Grid) (model.Trajectory, error) {
	return nil, fmt.Errorf("upstream unavailable")
}

func TestFetcherPropagatesProviderErrors(t *testing.T) {
	f := &Fetcher{Provider: failingProvider{}, Concurrency: 1}
	if _, _, err := f.Fetch(context.Background(), []string{"Mars"}, testGrid(t)); err == nil {
		t.Fatalf("expected provider error")
	}
}
