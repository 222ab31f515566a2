package ephem

import (
	"context"
	"fmt"

	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// TrajectoryCache persists fetched trajectories keyed by body and grid.
type TrajectoryCache interface {
	LoadTrajectory(ctx context.Context, body, gridKey string) (model.Trajectory, bool, error)
	SaveTrajectory(ctx context.Context, body, gridKey, source string, traj model.Trajectory) error
}

// CachedProvider serves trajectories from a cache and falls through to the
// wrapped provider on a miss.
type CachedProvider struct {
	inner Provider
	cache TrajectoryCache
	log   logging.Logger
}

// NewCachedProvider wraps inner with cache.
func NewCachedProvider(inner Provider, cache TrajectoryCache, log logging.Logger) *CachedProvider {
	if log == nil {
		log = logging.Noop()
	}
	return &CachedProvider{inner: inner, cache: cache, log: log}
}

// Name implements Provider.
func (c *CachedProvider) Name() string { return "cached(" + c.inner.Name() + ")" }

// Trajectory implements Provider. Cache read or write failures are logged
// and otherwise ignored.
func (c *CachedProvider) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	key := grid.Key()
	traj, ok, err := c.cache.LoadTrajectory(ctx, body, key)
	if err != nil {
		c.log.Warn(ctx, "trajectory cache read failed", logging.String("body", body), logging.Err(err))
	}
	if ok && len(traj) == grid.Len() {
		c.log.Debug(ctx, "trajectory cache hit", logging.String("body", body), logging.String("grid", key))
		return traj, nil
	}

	traj, err = c.inner.Trajectory(ctx, body, grid)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SaveTrajectory(ctx, body, key, c.inner.Name(), traj); err != nil {
		c.log.Warn(ctx, "trajectory cache write failed", logging.String("body", body), logging.Err(fmt.Errorf("save: %w", err)))
	}
	return traj, nil
}
