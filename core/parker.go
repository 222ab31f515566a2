package core

const (
	// SolarRadiusKm is the nominal photospheric radius of the Sun.
	SolarRadiusKm = 696000.0
	// DefaultSolarRotationPeriodDays is the sidereal Carrington rotation period.
	DefaultSolarRotationPeriodDays = 25.38
	// DefaultSourceSurfaceRadiusKm places the source surface at 2.5 solar radii.
	DefaultSourceSurfaceRadiusKm = 2.5 * SolarRadiusKm

	secondsPerDay = 86400.0
)

// ParkerMapper traces a position back along an Archimedean Parker spiral to
// its footpoint longitude on the source surface.
type ParkerMapper struct {
	// RotationRate is the solar rotation rate in rad/s.
	RotationRate float64
	// SourceSurfaceM is the source-surface radius in metres.
	SourceSurfaceM float64
	// WindSpeed is the solar wind speed in m/s. Must be > 0.
	WindSpeed float64
}

// NewParkerMapper builds a mapper from scan parameters.
func NewParkerMapper(p Params) (ParkerMapper, error) {
	if !(p.SolarWindSpeed > 0) {
		return ParkerMapper{}, configErrorf("solar wind speed must be > 0 m/s, got %v", p.SolarWindSpeed)
	}
	period := p.SolarRotationPeriodDays
	if !(period > 0) {
		return ParkerMapper{}, configErrorf("solar rotation period must be > 0 days, got %v", period)
	}
	return ParkerMapper{
		RotationRate:   twoPi / (period * secondsPerDay),
		SourceSurfaceM: p.SourceSurfaceRadiusKm * 1000,
		WindSpeed:      p.SolarWindSpeed,
	}, nil
}

// Footpoint returns the source-surface longitude in [0, 2π) of the field line
// passing through a body at distanceKm and longitude lon (radians).
func (m ParkerMapper) Footpoint(distanceKm, lon float64) float64 {
	rM := distanceKm * 1000
	return WrapTwoPi(lon + (m.RotationRate/m.WindSpeed)*(rM-m.SourceSurfaceM))
}
