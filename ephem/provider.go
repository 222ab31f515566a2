// Package ephem supplies heliocentric trajectories for named bodies on a
// common time grid.
package ephem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// ErrUnknownBody is returned by providers asked for a body they cannot serve.
var ErrUnknownBody = errors.New("unknown body")

// Provider returns the trajectory of one body sampled on grid. Returned
// samples carry exactly grid.Times() as timestamps.
type Provider interface {
	Name() string
	Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error)
}

// DefaultConcurrency bounds parallel provider calls in Fetcher.
const DefaultConcurrency = 4

// Fetcher retrieves several bodies at once.
type Fetcher struct {
	Provider    Provider
	Catalog     Catalog
	Log         logging.Logger
	Concurrency int
}

// Fetch retrieves every requested body. Bodies the provider does not know are
// skipped with a warning and listed in skipped; any other provider error
// aborts the fetch.
func (f *Fetcher) Fetch(ctx context.Context, bodies []string, grid timectrl.Grid) (trajectories map[string]model.Trajectory, skipped []string, err error) {
	log := logging.FromContext(ctx, f.Log)
	limit := f.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	var mu sync.Mutex
	trajectories = make(map[string]model.Trajectory, len(bodies))
	seen := make(map[string]struct{}, len(bodies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, body := range bodies {
		if _, dup := seen[body]; dup {
			continue
		}
		seen[body] = struct{}{}

		if info, ok := f.Catalog.Lookup(body); ok && !info.Covers(grid) {
			log.Warn(ctx, "requested window exceeds body data coverage",
				logging.String("body", body),
				logging.String("coverage", info.CoverageString()),
			)
		}

		g.Go(func() error {
			traj, err := f.Provider.Trajectory(gctx, body, grid)
			if errors.Is(err, ErrUnknownBody) {
				log.Warn(gctx, "body not recognized and will be skipped", logging.String("body", body))
				mu.Lock()
				skipped = append(skipped, body)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s from %s: %w", body, f.Provider.Name(), err)
			}
			mu.Lock()
			trajectories[body] = traj
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return trajectories, skipped, nil
}

// onGrid re-stamps samples with the grid times after checking that the
// provider returned one sample per grid step within tolerance.
func onGrid(body string, traj model.Trajectory, grid timectrl.Grid) (model.Trajectory, error) {
	if len(traj) != grid.Len() {
		return nil, fmt.Errorf("%s: got %d samples, grid has %d", body, len(traj), grid.Len())
	}
	for i := range traj {
		want := grid.At(i)
		if d := traj[i].Time.Sub(want); d > gridSlack || d < -gridSlack {
			return nil, fmt.Errorf("%s: sample %d at %s, expected %s", body, i, traj[i].Time.Format(timectrl.Layout), want.Format(timectrl.Layout))
		}
		traj[i].Time = want
	}
	return traj, nil
}
