package services

import (
	"context"

	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

const pointToPointAlternates = 2

// FindPointToPointRoutes returns the routed alternatives between two points.
// A routing failure yields an empty slice, never an error.
func (f *RouteFinder) FindPointToPointRoutes(ctx context.Context, start, end orb.Point) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "finder.FindPointToPointRoutes")(&err)

	req := ports.RouteRequest{
		Locations: []ports.Waypoint{
			{Point: start, Stop: true},
			{Point: end, Stop: true},
		},
		Alternates: pointToPointAlternates,
	}

	routes, rerr := f.router.Route(ctx, req)
	if rerr != nil {
		log.Warn().Str("req_id", obs.RequestID(ctx)).Err(rerr).Msg("point to point route unavailable")
		return []domain.Route{}, nil
	}

	out := make([]domain.Route, 0, len(routes))
	for _, r := range routes {
		if !r.Usable() {
			continue
		}
		r.Source = domain.SourceDirect
		out = append(out, r)
	}
	return out, nil
}
