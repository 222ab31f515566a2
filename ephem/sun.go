package ephem

import (
	"context"
	"fmt"

	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// SunProvider serves the Sun, which sits at the heliocentric origin.
type SunProvider struct{}

// Name implements Provider.
func (SunProvider) Name() string { return "sun" }

// Trajectory implements Provider.
func (SunProvider) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	if body != model.SunBody {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	traj := make(model.Trajectory, grid.Len())
	for i := range traj {
		traj[i] = model.PositionSample{Time: grid.At(i)}
	}
	return traj, nil
}
