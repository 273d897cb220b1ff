package domain

import "github.com/paulmach/orb"

// Represents a routed path returned by the routing service.
// Path is ordered (lon, lat). BacktrackRatio and Diversity are scoring
// metadata used only to rank loop candidates; they are not part of the
// user-facing contract.
type Route struct {
	Path            orb.LineString
	DistanceMiles   float64
	DurationMinutes float64

	BacktrackRatio float64
	Diversity      int
	Source         RouteSource
}

// RouteSource records which strategy produced a route.
type RouteSource string

const (
	SourceGraphSearch RouteSource = "graph_search"
	SourceFallback    RouteSource = "fallback"
	SourceDirect      RouteSource = "direct"
)

// Usable reports whether the route carries a drawable path and a positive length.
func (r *Route) Usable() bool {
	return r != nil && len(r.Path) >= 2 && r.DistanceMiles > 0
}
