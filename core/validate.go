package core

import (
	"fmt"
	"sort"

	"github.com/EmmaVellard/SolarConflux/model"
)

// ValidateTrajectories checks the common-grid precondition: at least one
// body, non-empty names, equal non-zero lengths and identical timestamps at
// every index. It returns a *ShapeError naming the offending bodies.
func ValidateTrajectories(trajectories map[string]model.Trajectory) error {
	if len(trajectories) == 0 {
		return &ShapeError{Reason: "no trajectories supplied"}
	}
	names := SortedBodies(trajectories)
	if names[0] == "" {
		return &ShapeError{Reason: "body with empty name"}
	}

	ref := names[0]
	refTraj := trajectories[ref]
	if len(refTraj) == 0 {
		return &ShapeError{Bodies: []string{ref}, Reason: "empty trajectory"}
	}

	var mismatched []string
	for _, name := range names[1:] {
		if len(trajectories[name]) != len(refTraj) {
			mismatched = append(mismatched, name)
		}
	}
	if len(mismatched) > 0 {
		return &ShapeError{
			Bodies: append([]string{ref}, mismatched...),
			Reason: fmt.Sprintf("trajectory lengths differ from %s (%d samples)", ref, len(refTraj)),
		}
	}

	for _, name := range names[1:] {
		traj := trajectories[name]
		for i := range traj {
			if !traj[i].Time.Equal(refTraj[i].Time) {
				return &ShapeError{
					Bodies: []string{ref, name},
					Reason: fmt.Sprintf("timestamps differ at index %d (%s vs %s)",
						i, refTraj[i].Time.UTC().Format("2006-01-02 15:04:05"), traj[i].Time.UTC().Format("2006-01-02 15:04:05")),
				}
			}
		}
	}
	return nil
}

// SortedBodies returns the body names of trajectories in lexical order.
func SortedBodies(trajectories map[string]model.Trajectory) []string {
	names := make([]string, 0, len(trajectories))
	for name := range trajectories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
