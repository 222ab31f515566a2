package model

import "time"

// SunBody is the catalogue name of the Sun. A group made of one body and the
// Sun is not reported as an alignment.
const SunBody = "Sun"

// PositionSample is one body's heliocentric state at one timestep.
// Angles are radians, distance is kilometres from the Sun's centre.
type PositionSample struct {
	Time       time.Time
	Longitude  float64
	Latitude   float64
	DistanceKm float64
}

// Trajectory is the ordered sequence of samples for one body on the scan's
// time grid.
type Trajectory []PositionSample

// Times returns the timestamps of the trajectory in order.
func (t Trajectory) Times() []time.Time {
	out := make([]time.Time, len(t))
	for i, s := range t {
		out[i] = s.Time
	}
	return out
}

// Between returns the samples whose timestamps fall inside [start, end].
func (t Trajectory) Between(start, end time.Time) Trajectory {
	var out Trajectory
	for _, s := range t {
		if s.Time.Before(start) || s.Time.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}
