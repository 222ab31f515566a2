package core

import (
	"math"

	"github.com/EmmaVellard/SolarConflux/model"
)

const twoPi = 2 * math.Pi

// Vec3 is a heliocentric cartesian vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Spherical converts v into longitude, latitude (radians) and distance (km).
// The longitude is wrapped into [0, 2π). The origin maps to all zeros.
func (v Vec3) Spherical() (lon, lat, distanceKm float64) {
	r := v.Norm()
	if r == 0 {
		return 0, 0, 0
	}
	lon = WrapTwoPi(math.Atan2(v.Y, v.X))
	lat = math.Asin(clamp(v.Z/r, -1, 1))
	return lon, lat, r
}

// SampleFromVec3 builds a position sample for v at the given instant.
func SampleFromVec3(v Vec3, sample model.PositionSample) model.PositionSample {
	sample.Longitude, sample.Latitude, sample.DistanceKm = v.Spherical()
	return sample
}

// Angles is the projected form of one position sample. Longitude is always
// inside [0, 2π).
type Angles struct {
	Lon        float64
	Lat        float64
	DistanceKm float64
}

// Project wraps the sample longitude into [0, 2π) and returns its angles.
// Upstream frame conversions can report negative or >2π longitudes, so the
// wrap is applied unconditionally.
func Project(s model.PositionSample) Angles {
	return Angles{
		Lon:        WrapTwoPi(s.Longitude),
		Lat:        s.Latitude,
		DistanceKm: s.DistanceKm,
	}
}

// Projections maps each body to its projected angles, indexed by timestep.
type Projections map[string][]Angles

// ProjectAll projects every sample of every trajectory once so the values can
// be shared by all modes and all pairwise checks of a scan.
func ProjectAll(trajectories map[string]model.Trajectory) Projections {
	out := make(Projections, len(trajectories))
	for name, traj := range trajectories {
		angles := make([]Angles, len(traj))
		for i, s := range traj {
			angles[i] = Project(s)
		}
		out[name] = angles
	}
	return out
}

// WrapTwoPi maps an angle in radians into [0, 2π).
func WrapTwoPi(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	if x >= twoPi {
		// x was a tiny negative number and rounding pushed it up to 2π.
		x = 0
	}
	return x
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
