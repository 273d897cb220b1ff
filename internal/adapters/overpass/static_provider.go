package overpass

import (
	"context"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/ports"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// StaticProvider serves a fixed set of ways, filtered by class and by the
// query circle. It stands in for Overpass in tests and offline runs.
type StaticProvider struct {
	Walkable  []domain.Way
	Arterials []domain.Way
	Err       error
}

func (s *StaticProvider) Ways(ctx context.Context, q ports.WayQuery) ([]domain.Way, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := s.Walkable
	if q.Filter == ports.ArterialWays {
		src = s.Arterials
	}

	out := make([]domain.Way, 0, len(src))
	for _, w := range src {
		for _, p := range w.Geometry {
			if geo.DistanceHaversine(q.Center, p) <= q.RadiusMeters {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

// GridWays lays out a walkable street grid of rows×cols intersections
// centered on center, spaced spacingMeters apart. Each block edge is its own
// way with one interior shape point, as Overpass tends to return them.
func GridWays(center orb.Point, rows, cols int, spacingMeters float64) []domain.Way {
	south := geo.PointAtBearingAndDistance(center, 180, float64(rows-1)*spacingMeters/2)
	origin := geo.PointAtBearingAndDistance(south, 270, float64(cols-1)*spacingMeters/2)
	at := func(r, c int) orb.Point {
		p := geo.PointAtBearingAndDistance(origin, 0, float64(r)*spacingMeters)
		return geo.PointAtBearingAndDistance(p, 90, float64(c)*spacingMeters)
	}

	var ways []domain.Way
	id := int64(1)
	add := func(a, b orb.Point) {
		mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
		ways = append(ways, domain.Way{ID: id, Highway: "residential", Geometry: orb.LineString{a, mid, b}})
		id++
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				add(at(r, c), at(r, c+1))
			}
			if r+1 < rows {
				add(at(r, c), at(r+1, c))
			}
		}
	}
	return ways
}

// GridProvider synthesizes a square street grid around every walkable query
// and reports no arterials. It backs offline runs where no Overpass instance
// is reachable.
type GridProvider struct {
	SpacingMeters float64
}

func (g *GridProvider) Ways(ctx context.Context, q ports.WayQuery) ([]domain.Way, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Filter != ports.WalkableWays || g.SpacingMeters <= 0 {
		return nil, nil
	}
	n := 2*int(q.RadiusMeters/g.SpacingMeters) + 1
	n = min(max(n, 2), 81)
	return GridWays(q.Center, n, n, g.SpacingMeters), nil
}
