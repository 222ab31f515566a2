package ephem

import (
	"context"
	"fmt"

	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// Router dispatches each body to the provider registered for it, falling
// back to Default for bodies without an explicit route.
type Router struct {
	routes  map[string]Provider
	Default Provider
}

// NewRouter returns a router with the given fallback provider, which may be nil.
func NewRouter(fallback Provider) *Router {
	return &Router{routes: make(map[string]Provider), Default: fallback}
}

// Route sends body to p.
func (r *Router) Route(body string, p Provider) {
	r.routes[body] = p
}

// Name implements Provider.
func (r *Router) Name() string { return "router" }

// Trajectory implements Provider.
func (r *Router) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	p, ok := r.routes[body]
	if !ok {
		p = r.Default
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	return p.Trajectory(ctx, body, grid)
}

// NewStandardRouter sends the Sun to SunProvider, each TLE spacecraft to
// SGP4 and every other body to Horizons at horizonsURL. It also returns the
// TLE body names.
func NewStandardRouter(horizonsURL string, catalog Catalog, tles []TLE) (*Router, []string, error) {
	router := NewRouter(NewHorizonsProvider(horizonsURL, catalog))
	router.Route(model.SunBody, SunProvider{})

	sgp4, err := NewTLEProvider(tles...)
	if err != nil {
		return nil, nil, err
	}
	names := sgp4.Bodies()
	for _, name := range names {
		router.Route(name, sgp4)
	}
	return router, names, nil
}
