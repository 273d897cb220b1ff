package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidTarget = errors.New("target distance must be a positive number of miles")

// RouteFinder is the entry point for loop and point-to-point route discovery.
// It holds only collaborators and constants; every call builds its own graph
// and used-edge set, so concurrent calls share no mutable state.
type RouteFinder struct {
	router   ports.Router
	geometry ports.MapGeometryProvider
	params   Params
}

func NewRouteFinder(router ports.Router, geometry ports.MapGeometryProvider, params Params) (*RouteFinder, error) {
	if router == nil {
		return nil, errors.New("new route finder: router must be non-nil")
	}
	if geometry == nil {
		return nil, errors.New("new route finder: geometry provider must be non-nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("new route finder: %w", err)
	}
	return &RouteFinder{router: router, geometry: geometry, params: params}, nil
}

// Params returns the constants this finder was built with.
func (f *RouteFinder) Params() Params { return f.params }

// FindLoopRoutes returns up to MaxRoutes diverse loops that start and end at
// start, ranked by closeness to targetMiles. polygon and onRoute are optional;
// onRoute is called once per validated route as results arrive.
//
// External failures never surface as errors: they shrink the candidate pool,
// and an exhausted pool yields an empty slice. Only invalid input errors.
func (f *RouteFinder) FindLoopRoutes(
	ctx context.Context,
	start orb.Point,
	targetMiles float64,
	polygon *domain.Polygon,
	onRoute func(domain.Route),
) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "finder.FindLoopRoutes")(&err)

	if !(targetMiles > 0) || math.IsInf(targetMiles, 1) {
		return nil, fmt.Errorf("find loop routes: %w (got %v)", ErrInvalidTarget, targetMiles)
	}

	p := f.params
	target := targetMiles * metersPerMile
	searchRadius := target / (2 * math.Pi * p.RoadFactor)

	center := start
	graphRadius := searchRadius * p.GraphRadiusFactor
	if polygon != nil {
		center = polygon.Centroid()
		graphRadius = max(graphRadius, polygon.ExtentMeters(center))
	}

	arterials, walkways := f.fetchGeometry(ctx, start, searchRadius*p.GraphRadiusFactor, center, graphRadius)

	v := &candidateValidator{router: f.router, p: p, start: start, target: target, polygon: polygon}

	var routes []domain.Route
	trigger := ""

	g := BuildWalkGraph(walkways, p.CoordPrecision)
	if g.Len() < p.MinGraphNodes {
		trigger = "graph_unusable"
	} else if id, snapMeters, ok := g.Nearest(start); !ok || snapMeters > p.MaxSnapMeters {
		trigger = "unsnappable"
	} else {
		used := NewUsedEdgeSet()
		cands := SearchLoops(g, LoopSearchRequest{Start: id, TargetMeters: target, Polygon: polygon}, p, used)
		obs.CandidatesFound.Observe(float64(len(cands)))
		cands = rankCandidates(cands, target, p.MaxCandidates)

		reqs := make([]loopRequest, 0, len(cands))
		for _, c := range cands {
			reqs = append(reqs, requestFromCandidate(g, c, p.WaypointCount))
		}
		routes = v.validateAll(ctx, reqs, onRoute)

		log.Debug().
			Str("req_id", obs.RequestID(ctx)).
			Int("graph_nodes", g.Len()).
			Int("graph_edges", g.EdgeCount()).
			Float64("snap_m", snapMeters).
			Int("candidates", len(cands)).
			Int("accepted", len(routes)).
			Msg("graph search finished")

		if len(routes) < p.MinRoutes {
			trigger = "too_few_routes"
		}
	}

	if trigger != "" {
		obs.FallbackTriggered.WithLabelValues(trigger).Inc()
		routes = append(routes, v.validateAll(ctx, fallbackRequests(start, target, polygon, arterials, p), onRoute)...)
	}

	// A polygon that rejects everything should not leave the caller empty-handed.
	if polygon != nil && len(routes) == 0 {
		obs.FallbackTriggered.WithLabelValues("polygon_rejected").Inc()
		open := *v
		open.polygon = nil
		routes = open.validateAll(ctx, fallbackRequests(start, target, nil, arterials, p), onRoute)
	}

	SortRoutes(routes, targetMiles)
	routes = DedupeRoutes(routes, p.DedupeCellMeters, p.DedupeThreshold)
	if len(routes) > p.MaxRoutes {
		routes = routes[:p.MaxRoutes]
	}
	if routes == nil {
		routes = []domain.Route{}
	}

	log.Info().
		Str("req_id", obs.RequestID(ctx)).
		Float64("target_mi", targetMiles).
		Bool("polygon", polygon != nil).
		Str("fallback", trigger).
		Int("routes", len(routes)).
		Msg("loop routes found")

	return routes, nil
}

// fetchGeometry loads arterial and walkable ways concurrently. A failed fetch
// is logged and treated as "no geometry".
func (f *RouteFinder) fetchGeometry(
	ctx context.Context,
	start orb.Point,
	arterialRadius float64,
	center orb.Point,
	graphRadius float64,
) (arterials, walkways []domain.Way) {
	var grp errgroup.Group

	grp.Go(func() error {
		ways, err := f.geometry.Ways(ctx, ports.WayQuery{Center: start, RadiusMeters: arterialRadius, Filter: ports.ArterialWays})
		if err != nil {
			log.Warn().Str("req_id", obs.RequestID(ctx)).Err(err).Msg("arterial geometry unavailable")
			return nil
		}
		arterials = ways
		return nil
	})
	grp.Go(func() error {
		ways, err := f.geometry.Ways(ctx, ports.WayQuery{Center: center, RadiusMeters: graphRadius, Filter: ports.WalkableWays})
		if err != nil {
			log.Warn().Str("req_id", obs.RequestID(ctx)).Err(err).Msg("walkable geometry unavailable")
			return nil
		}
		walkways = ways
		return nil
	})
	_ = grp.Wait()

	return arterials, walkways
}

// rankCandidates orders candidates by closeness to target, then by diversity,
// and keeps at most limit of them (limit <= 0 keeps all).
func rankCandidates(cands []DfsCandidate, target float64, limit int) []DfsCandidate {
	slices.SortStableFunc(cands, func(a, b DfsCandidate) int {
		if c := cmp.Compare(math.Abs(a.DistanceMeters-target), math.Abs(b.DistanceMeters-target)); c != 0 {
			return c
		}
		return cmp.Compare(b.Diversity, a.Diversity)
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}

// SortRoutes orders routes by |distance - target|, then higher diversity,
// then lower backtrack ratio.
func SortRoutes(routes []domain.Route, targetMiles float64) {
	slices.SortStableFunc(routes, func(a, b domain.Route) int {
		if c := cmp.Compare(math.Abs(a.DistanceMiles-targetMiles), math.Abs(b.DistanceMiles-targetMiles)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Diversity, a.Diversity); c != 0 {
			return c
		}
		return cmp.Compare(a.BacktrackRatio, b.BacktrackRatio)
	})
}
