package ephem

import (
	"math"
	"time"

	"github.com/EmmaVellard/SolarConflux/core"
)

const (
	auKm     = 149597870.7
	j2000JD  = 2451545.0
	degToRad = math.Pi / 180

	// Orientation of the solar equator relative to the J2000 ecliptic.
	solarNodeLonDeg     = 75.76
	solarInclinationDeg = 7.25
)

// EarthHeliocentric returns Earth's heliocentric ecliptic position in km
// using the low-precision solar coordinates of the Astronomical Almanac
// (about 0.01° in longitude between 1950 and 2050).
func EarthHeliocentric(t time.Time) core.Vec3 {
	n := JulianDate(t) - j2000JD
	meanLon := 280.460 + 0.9856474*n
	g := (357.528 + 0.9856003*n) * degToRad

	sunLon := (meanLon + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * degToRad
	r := (1.00014 - 0.01671*math.Cos(g) - 0.00014*math.Cos(2*g)) * auKm

	// Earth sits opposite the apparent Sun.
	earthLon := sunLon + math.Pi
	return core.Vec3{X: r * math.Cos(earthLon), Y: r * math.Sin(earthLon)}
}

// Obliquity returns the mean obliquity of the ecliptic in radians.
func Obliquity(t time.Time) float64 {
	n := JulianDate(t) - j2000JD
	return (23.439 - 0.0000004*n) * degToRad
}

// EquatorialToEcliptic rotates an equatorial vector about the X axis by the
// obliquity eps.
func EquatorialToEcliptic(v core.Vec3, eps float64) core.Vec3 {
	sin, cos := math.Sincos(eps)
	return core.Vec3{
		X: v.X,
		Y: v.Y*cos + v.Z*sin,
		Z: -v.Y*sin + v.Z*cos,
	}
}

// EclipticToHCI rotates a J2000 ecliptic vector into the Heliocentric
// Inertial frame: Z along the solar rotation axis, X toward the ascending
// node of the solar equator on the ecliptic.
func EclipticToHCI(v core.Vec3) core.Vec3 {
	sinN, cosN := math.Sincos(solarNodeLonDeg * degToRad)
	sinI, cosI := math.Sincos(solarInclinationDeg * degToRad)

	x := v.X*cosN + v.Y*sinN
	y := -v.X*sinN + v.Y*cosN
	return core.Vec3{
		X: x,
		Y: y*cosI + v.Z*sinI,
		Z: -y*sinI + v.Z*cosI,
	}
}
