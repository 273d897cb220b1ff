package services

import (
	"context"

	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// loopRequest is a candidate loop expressed as pass-through waypoints.
// Diversity carries the search metric forward; zero means "derive from the
// routed path".
type loopRequest struct {
	Waypoints []orb.Point
	Diversity int
	Source    domain.RouteSource
}

// candidateValidator turns loop requests into routed, scored routes for one invocation.
type candidateValidator struct {
	router  ports.Router
	p       Params
	start   orb.Point
	target  float64
	polygon *domain.Polygon
}

// requestFromCandidate downsamples a node path to at most p.WaypointCount
// evenly indexed interior waypoints.
func requestFromCandidate(g *WalkGraph, c DfsCandidate, n int) loopRequest {
	interior := c.Nodes
	if len(interior) >= 2 {
		interior = interior[1 : len(interior)-1]
	}

	pick := make([]int, 0, n)
	if len(interior) <= n {
		pick = append(pick, interior...)
	} else if n == 1 {
		pick = append(pick, interior[len(interior)/2])
	} else {
		last := len(interior) - 1
		for i := 0; i < n; i++ {
			pick = append(pick, interior[(i*last+(n-1)/2)/(n-1)])
		}
	}

	wps := make([]orb.Point, 0, len(pick))
	for i, id := range pick {
		if i > 0 && pick[i-1] == id {
			continue
		}
		wps = append(wps, g.Node(id).Point)
	}

	return loopRequest{Waypoints: wps, Diversity: c.Diversity, Source: domain.SourceGraphSearch}
}

func (v *candidateValidator) routeRequest(wps []orb.Point) ports.RouteRequest {
	locs := make([]ports.Waypoint, 0, len(wps)+2)
	locs = append(locs, ports.Waypoint{Point: v.start, Stop: true})
	for _, wp := range wps {
		locs = append(locs, ports.Waypoint{Point: wp})
	}
	locs = append(locs, ports.Waypoint{Point: v.start, Stop: true})
	return ports.RouteRequest{Locations: locs}
}

// validate routes one request and applies the acceptance rules. Any router
// failure is absorbed here and reported as a rejection.
func (v *candidateValidator) validate(ctx context.Context, req loopRequest) (domain.Route, bool) {
	routes, err := v.router.Route(ctx, v.routeRequest(req.Waypoints))
	if err != nil {
		obs.RoutesRejected.WithLabelValues("routing_error").Inc()
		log.Debug().Str("req_id", obs.RequestID(ctx)).Err(err).Msg("candidate skipped: routing failed")
		return domain.Route{}, false
	}
	if len(routes) == 0 || !routes[0].Usable() {
		obs.RoutesRejected.WithLabelValues("unusable").Inc()
		return domain.Route{}, false
	}
	r := routes[0]

	lo, hi := v.p.distanceWindow(v.target)
	if meters := r.DistanceMiles * metersPerMile; meters < lo || meters > hi {
		obs.RoutesRejected.WithLabelValues("distance").Inc()
		return domain.Route{}, false
	}

	if v.polygon != nil && v.polygon.InsideFraction(r.Path) < v.p.MinInsideFraction {
		obs.RoutesRejected.WithLabelValues("polygon").Inc()
		return domain.Route{}, false
	}

	r.BacktrackRatio = backtrackRatio(r.Path, v.p.BacktrackCellMeters, v.p.BacktrackSamples)
	r.Diversity = req.Diversity
	if r.Diversity == 0 {
		r.Diversity = len(newCellGrid(v.p.SearchCellMeters, v.start.Lat()).cellSet(r.Path))
	}
	r.Source = req.Source

	obs.RoutesAccepted.WithLabelValues(string(req.Source)).Inc()
	return r, true
}

// validateAll validates every request concurrently. Accepted routes travel
// over a single channel to one collector, which appends each result exactly
// once and invokes onRoute exactly once per result in arrival order.
func (v *candidateValidator) validateAll(ctx context.Context, reqs []loopRequest, onRoute func(domain.Route)) []domain.Route {
	if len(reqs) == 0 {
		return nil
	}

	accepted := make(chan domain.Route)
	collected := make(chan []domain.Route, 1)

	go func() {
		var out []domain.Route
		for r := range accepted {
			out = append(out, r)
			if onRoute != nil {
				onRoute(r)
			}
		}
		collected <- out
	}()

	var grp errgroup.Group
	if v.p.ValidationConcurrency > 0 {
		grp.SetLimit(v.p.ValidationConcurrency)
	}
	for _, req := range reqs {
		req := req
		grp.Go(func() error {
			if r, ok := v.validate(ctx, req); ok {
				accepted <- r
			}
			return nil
		})
	}
	_ = grp.Wait()
	close(accepted)

	return <-collected
}

// backtrackRatio is the fraction of evenly spaced samples that come back to
// a grid cell left earlier. Consecutive samples in the same cell do not count.
func backtrackRatio(path orb.LineString, cellMeters float64, samples int) float64 {
	if len(path) < 2 || samples < 2 {
		return 0
	}
	n := min(samples, len(path))
	grid := newCellGrid(cellMeters, path[0].Lat())

	seen := make(map[gridCell]struct{}, n)
	var prev gridCell
	repeats := 0
	last := len(path) - 1
	for i := 0; i < n; i++ {
		c := grid.cell(path[i*last/(n-1)])
		if _, ok := seen[c]; ok && (i == 0 || c != prev) {
			repeats++
		}
		seen[c] = struct{}{}
		prev = c
	}

	return float64(repeats) / float64(n)
}
