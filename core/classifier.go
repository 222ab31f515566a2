package core

import (
	"math"

	"github.com/EmmaVellard/SolarConflux/model"
)

// relTolerance is the relative slack applied on top of every absolute
// tolerance, matching the usual floating-point closeness test.
const relTolerance = 1e-5

// Classifier decides, for one mode, whether two bodies at one timestep are
// aligned. It is immutable and safe for concurrent use.
type Classifier struct {
	mode   model.AlignmentMode
	params Params
	parker ParkerMapper
}

// NewClassifier validates params for mode and returns a classifier.
func NewClassifier(mode model.AlignmentMode, params Params) (*Classifier, error) {
	if err := params.ValidateFor(mode); err != nil {
		return nil, err
	}
	c := &Classifier{mode: mode, params: params}
	if mode.UsesParker() {
		m, err := NewParkerMapper(params)
		if err != nil {
			return nil, err
		}
		c.parker = m
	}
	return c, nil
}

// Mode returns the alignment mode the classifier checks.
func (c *Classifier) Mode() model.AlignmentMode { return c.mode }

// Aligned reports whether a and b satisfy the classifier's mode.
func (c *Classifier) Aligned(a, b Angles) bool {
	p := c.params
	dLon := lonSeparation(a.Lon, b.Lon)

	switch c.mode {
	case model.ModeOpposition:
		return isClose(dLon, math.Pi, p.Tolerance)
	case model.ModeCone:
		return dLon <= p.ConeWidth
	case model.ModeQuadrature:
		return isClose(dLon, math.Pi/2, p.Tolerance) ||
			isClose(math.Abs(a.Lat-b.Lat), math.Pi/2, p.Tolerance)
	case model.ModeArbitrary:
		if p.ArbitraryAngle == nil {
			return false
		}
		return isClose(dLon, *p.ArbitraryAngle, p.Tolerance)
	case model.ModeParker:
		return c.sameFootpoint(a, b) && isClose(a.Lat, b.Lat, p.Tolerance)
	case model.ModeConeParker:
		return dLon <= p.ConeWidth &&
			c.sameFootpoint(a, b) &&
			isClose(a.Lat, b.Lat, p.Tolerance)
	default:
		return false
	}
}

func (c *Classifier) sameFootpoint(a, b Angles) bool {
	phiA := c.parker.Footpoint(a.DistanceKm, a.Lon)
	phiB := c.parker.Footpoint(b.DistanceKm, b.Lon)
	return isClose(phiA, phiB, c.params.ToleranceParker)
}

// lonSeparation is the absolute raw difference of two projected longitudes.
// Both inputs are already in [0, 2π), so the difference is not wrapped a
// second time: 350° and 10° are 340° apart, not 20°.
func lonSeparation(a, b float64) float64 {
	return math.Abs(a - b)
}

// isClose reports |a-b| <= atol + relTolerance*|b|.
func isClose(a, b, atol float64) bool {
	return math.Abs(a-b) <= atol+relTolerance*math.Abs(b)
}
