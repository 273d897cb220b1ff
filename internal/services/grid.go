package services

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
)

// gridCell is the integer index of a square cell. Cells are comparable and
// used directly as map keys.
type gridCell struct{ x, y int64 }

// cellGrid buckets points into square cells of the configured ground size.
// Points are projected to web-mercator meters; mercator stretches ground
// distance by 1/cos(lat), so the projected cell edge is scaled by the same
// factor at the reference latitude.
type cellGrid struct {
	size float64
}

func newCellGrid(cellMeters, refLat float64) cellGrid {
	return cellGrid{size: cellMeters / math.Cos(refLat*math.Pi/180)}
}

func (g cellGrid) cell(p orb.Point) gridCell {
	m := project.WGS84.ToMercator(p)
	return gridCell{
		x: int64(math.Floor(m[0] / g.size)),
		y: int64(math.Floor(m[1] / g.size)),
	}
}

// cellSet fingerprints a path as the set of cells it touches.
func (g cellGrid) cellSet(path []orb.Point) map[gridCell]struct{} {
	set := make(map[gridCell]struct{}, len(path)/2+1)
	for _, p := range path {
		set[g.cell(p)] = struct{}{}
	}
	return set
}

// angleDiff returns the absolute difference of two bearings in degrees, in [0, 180].
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func distance(a, b orb.Point) float64 { return geo.DistanceHaversine(a, b) }

func bearing(from, to orb.Point) float64 { return geo.Bearing(from, to) }
