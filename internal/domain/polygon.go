package domain

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidPolygon = errors.New("polygon must have at least 3 distinct vertices")

// Polygon is a user-drawn constraint region with (lon, lat) vertices.
// It is immutable once constructed.
type Polygon struct {
	ring  orb.Ring
	bound orb.Bound
}

// NewPolygon builds a polygon from an open or closed vertex list.
func NewPolygon(vertices []orb.Point) (*Polygon, error) {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		if len(ring) > 0 && ring[len(ring)-1].Equal(v) {
			continue
		}
		ring = append(ring, v)
	}
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("new polygon: %w (got %d)", ErrInvalidPolygon, len(ring))
	}
	ring = append(ring, ring[0])

	return &Polygon{ring: ring, bound: ring.Bound()}, nil
}

// Vertices returns a copy of the closed ring.
func (p *Polygon) Vertices() []orb.Point {
	out := make([]orb.Point, len(p.ring))
	copy(out, p.ring)
	return out
}

// Contains tests membership with even-odd ray casting.
func (p *Polygon) Contains(pt orb.Point) bool {
	if !p.bound.Contains(pt) {
		return false
	}
	return planar.RingContains(p.ring, pt)
}

// InsideFraction returns the share of path points that fall inside the polygon.
func (p *Polygon) InsideFraction(path orb.LineString) float64 {
	if len(path) == 0 {
		return 0
	}
	inside := 0
	for _, pt := range path {
		if p.Contains(pt) {
			inside++
		}
	}
	return float64(inside) / float64(len(path))
}

// Centroid returns the area centroid of the polygon.
func (p *Polygon) Centroid() orb.Point {
	c, area := planar.CentroidArea(orb.Polygon{p.ring})
	if area == 0 {
		return p.bound.Center()
	}
	return c
}

// ExtentMeters is the largest great-circle distance from center to any vertex.
func (p *Polygon) ExtentMeters(center orb.Point) float64 {
	var maxDist float64
	for _, v := range p.ring {
		maxDist = max(maxDist, geo.DistanceHaversine(center, v))
	}
	return maxDist
}
