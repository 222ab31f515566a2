package ephem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// TLE is a two-line element set for an Earth-orbiting spacecraft.
type TLE struct {
	Name  string `json:"name" yaml:"name"`
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2" yaml:"line2"`
}

// Validate checks the line layout before handing it to SGP4.
func (t TLE) Validate() error {
	l1, l2 := strings.TrimSpace(t.Line1), strings.TrimSpace(t.Line2)
	switch {
	case t.Name == "":
		return fmt.Errorf("tle without name")
	case len(l1) < 69 || !strings.HasPrefix(l1, "1 "):
		return fmt.Errorf("tle %s: malformed line 1", t.Name)
	case len(l2) < 69 || !strings.HasPrefix(l2, "2 "):
		return fmt.Errorf("tle %s: malformed line 2", t.Name)
	}
	return nil
}

// TLEProvider propagates Earth orbiters with SGP4 and expresses their
// position heliocentrically: the geocentric equatorial vector is rotated to
// the ecliptic, offset by Earth's heliocentric position and rotated into
// the Heliocentric Inertial frame.
type TLEProvider struct {
	sats map[string]satellite.Satellite
}

// NewTLEProvider parses the given element sets.
func NewTLEProvider(tles ...TLE) (*TLEProvider, error) {
	p := &TLEProvider{sats: make(map[string]satellite.Satellite, len(tles))}
	for _, t := range tles {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		p.sats[t.Name] = satellite.TLEToSat(strings.TrimSpace(t.Line1), strings.TrimSpace(t.Line2), satellite.GravityWGS72)
	}
	return p, nil
}

// Name implements Provider.
func (p *TLEProvider) Name() string { return "sgp4" }

// Bodies returns the names of the loaded spacecraft.
func (p *TLEProvider) Bodies() []string {
	out := make([]string, 0, len(p.sats))
	for name := range p.sats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Trajectory implements Provider.
func (p *TLEProvider) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	sat, ok := p.sats[body]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	traj := make(model.Trajectory, grid.Len())
	for i := range traj {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		at := grid.At(i)
		geo, err := propagate(sat, at)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", body, err)
		}
		helio := EquatorialToEcliptic(geo, Obliquity(at)).Add(EarthHeliocentric(at))
		traj[i] = core.SampleFromVec3(EclipticToHCI(helio), model.PositionSample{Time: at})
	}
	return traj, nil
}

// propagate returns the geocentric equatorial position in km.
func propagate(sat satellite.Satellite, at time.Time) (core.Vec3, error) {
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	v := core.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	if math.IsNaN(v.Norm()) || v.Norm() == 0 {
		return core.Vec3{}, fmt.Errorf("sgp4 propagation failed at %s", at.Format(timectrl.Layout))
	}
	return v, nil
}
