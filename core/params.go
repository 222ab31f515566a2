package core

import (
	"math"

	"github.com/EmmaVellard/SolarConflux/model"
)

// Default mode parameters.
var (
	DefaultConeWidth       = Radians(10)
	DefaultTolerance       = Radians(10)
	DefaultToleranceParker = Radians(5)
)

// DefaultSolarWindSpeed is 400 km/s expressed in m/s.
const DefaultSolarWindSpeed = 400e3

// Params holds every tunable of the alignment checks. Angles are radians,
// speeds m/s, distances km.
type Params struct {
	// ConeWidth bounds the raw longitude difference for cone and coneparker.
	ConeWidth float64
	// Tolerance is the absolute slack for opposition, quadrature, arbitrary and
	// latitude comparisons.
	Tolerance float64
	// ToleranceParker is the absolute slack on Parker footpoint longitudes.
	ToleranceParker float64
	// ArbitraryAngle is the target separation for arbitrary mode. Nil when unset.
	ArbitraryAngle *float64
	// SolarWindSpeed drives the Parker spiral; required > 0 for parker modes.
	SolarWindSpeed float64

	SolarRotationPeriodDays float64
	SourceSurfaceRadiusKm   float64
}

// DefaultParams returns the documented defaults: 10° cone and tolerance, 5°
// Parker tolerance, 400 km/s wind, 25.38 day rotation, 2.5 Rsun source surface
// and no arbitrary angle.
func DefaultParams() Params {
	return Params{
		ConeWidth:               DefaultConeWidth,
		Tolerance:               DefaultTolerance,
		ToleranceParker:         DefaultToleranceParker,
		SolarWindSpeed:          DefaultSolarWindSpeed,
		SolarRotationPeriodDays: DefaultSolarRotationPeriodDays,
		SourceSurfaceRadiusKm:   DefaultSourceSurfaceRadiusKm,
	}
}

// WithArbitraryAngle returns a copy of p with the arbitrary angle set.
func (p Params) WithArbitraryAngle(rad float64) Params {
	p.ArbitraryAngle = &rad
	return p
}

// ValidateFor checks the parameters that mode depends on.
func (p Params) ValidateFor(mode model.AlignmentMode) error {
	if !validAngle(p.Tolerance) {
		return configErrorf("tolerance must be a finite angle >= 0, got %v", p.Tolerance)
	}
	switch mode {
	case model.ModeCone:
		if !validAngle(p.ConeWidth) {
			return configErrorf("cone width must be a finite angle >= 0, got %v", p.ConeWidth)
		}
	case model.ModeArbitrary:
		if p.ArbitraryAngle == nil {
			return configErrorf("arbitrary mode requires an arbitrary angle")
		}
		if math.IsNaN(*p.ArbitraryAngle) || math.IsInf(*p.ArbitraryAngle, 0) {
			return configErrorf("arbitrary angle must be finite, got %v", *p.ArbitraryAngle)
		}
	case model.ModeParker, model.ModeConeParker:
		if mode == model.ModeConeParker && !validAngle(p.ConeWidth) {
			return configErrorf("cone width must be a finite angle >= 0, got %v", p.ConeWidth)
		}
		if !validAngle(p.ToleranceParker) {
			return configErrorf("parker tolerance must be a finite angle >= 0, got %v", p.ToleranceParker)
		}
		if _, err := NewParkerMapper(p); err != nil {
			return err
		}
	case model.ModeOpposition, model.ModeQuadrature:
	default:
		return ErrUnknownMode
	}
	return nil
}

func validAngle(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
