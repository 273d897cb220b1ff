package ports

import (
	"context"
	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
)

// Waypoint is one location passed to the routing service.
// Stop marks a true stop ("break"); otherwise the route passes through it.
type Waypoint struct {
	Point orb.Point
	Stop  bool
}

// RouteRequest is an ordered list of locations plus optional alternates.
type RouteRequest struct {
	Locations  []Waypoint
	Alternates int
}

// Contract for requesting a routed polyline through ordered locations.
type Router interface {
	// Return every usable alternative; the primary route comes first.
	Route(ctx context.Context, req RouteRequest) ([]domain.Route, error)
}
