package ports

import (
	"context"
	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
)

// WayFilter selects a class of ways from the map-geometry service.
type WayFilter string

const (
	// Footpaths and streets a pedestrian may use.
	WalkableWays WayFilter = "walkable"
	// Major roads a fallback waypoint must not be separated from start by.
	ArterialWays WayFilter = "arterial"
)

// WayQuery is a circular bounding query.
type WayQuery struct {
	Center       orb.Point
	RadiusMeters float64
	Filter       WayFilter
}

// Contract for retrieving raw way geometry around a point.
type MapGeometryProvider interface {
	Ways(ctx context.Context, q WayQuery) ([]domain.Way, error)
}
