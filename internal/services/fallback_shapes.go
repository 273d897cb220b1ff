package services

import (
	"math"

	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ShapeKind names a parametric loop template.
type ShapeKind string

const (
	ShapeCircle      ShapeKind = "circle"
	ShapeTeardrop    ShapeKind = "teardrop"
	ShapeOffsetLobe  ShapeKind = "offset_lobe"
	ShapeFigureEight ShapeKind = "figure_eight"
)

// shapeTemplate lists waypoints in a local frame measured in radii:
// x points along the rotation bearing, y to its left. The origin is the
// start; a zero offset means "pass back through the start".
type shapeTemplate struct {
	kind    ShapeKind
	offsets [][2]float64
}

var shapeTemplates = []shapeTemplate{
	{kind: ShapeCircle, offsets: arcOffsets([2]float64{1, 0}, 180, 5)},
	{kind: ShapeTeardrop, offsets: [][2]float64{
		{0.6, -0.5}, {1.5, -0.65}, {2.3, -0.1}, {1.8, 0.55}, {0.8, 0.35},
	}},
	{kind: ShapeOffsetLobe, offsets: arcOffsets([2]float64{0.5, math.Sqrt(3) / 2}, -120, 5)},
	{kind: ShapeFigureEight, offsets: [][2]float64{
		{0.5, 0.6}, {1.2, 0.5}, {1.1, -0.1}, {0, 0}, {-0.5, -0.6}, {-1.2, -0.5}, {-1.1, 0.1},
	}},
}

// arcOffsets places n-1 points on a unit circle around center, evenly spaced
// and starting after the angle (degrees) at which the circle meets the origin.
func arcOffsets(center [2]float64, startDeg float64, n int) [][2]float64 {
	out := make([][2]float64, 0, n-1)
	for k := 1; k < n; k++ {
		a := (startDeg + float64(k)*360/float64(n)) * math.Pi / 180
		out = append(out, [2]float64{center[0] + math.Cos(a), center[1] + math.Sin(a)})
	}
	return out
}

// unitPerimeter is the closed straight-line length of the template at radius 1.
func (t shapeTemplate) unitPerimeter() float64 {
	var total float64
	prev := [2]float64{0, 0}
	for _, o := range t.offsets {
		total += math.Hypot(o[0]-prev[0], o[1]-prev[1])
		prev = o
	}
	return total + math.Hypot(prev[0], prev[1])
}

// arterialIndex answers "does this straight segment cross a major road".
type arterialIndex struct {
	segs   [][2]orb.Point
	bounds []orb.Bound
}

func newArterialIndex(ways []domain.Way) *arterialIndex {
	idx := &arterialIndex{}
	for _, w := range ways {
		for i := 1; i < len(w.Geometry); i++ {
			a, b := w.Geometry[i-1], w.Geometry[i]
			idx.segs = append(idx.segs, [2]orb.Point{a, b})
			idx.bounds = append(idx.bounds, orb.Bound{Min: a, Max: a}.Extend(b))
		}
	}
	return idx
}

func (idx *arterialIndex) crosses(a, b orb.Point) bool {
	if idx == nil {
		return false
	}
	bound := orb.Bound{Min: a, Max: a}.Extend(b)
	for i, s := range idx.segs {
		if !bound.Intersects(idx.bounds[i]) {
			continue
		}
		if segmentsCross(a, b, s[0], s[1]) {
			return true
		}
	}
	return false
}

// segmentsCross reports a proper intersection of segments p1p2 and q1q2,
// treating lon/lat as planar coordinates. Touching endpoints do not count,
// so a start placed on a major road is not blocked in every direction.
func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	return d1*d2 < 0 && d3*d4 < 0
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// shapePlacer positions template waypoints around a start point.
type shapePlacer struct {
	start     orb.Point
	polygon   *domain.Polygon
	arterials *arterialIndex
	nudgeDeg  float64
	attempts  int
}

func (sp *shapePlacer) acceptable(p orb.Point) bool {
	if sp.polygon != nil && !sp.polygon.Contains(p) {
		return false
	}
	return !sp.arterials.crosses(sp.start, p)
}

// place returns the waypoint for one offset. An unacceptable position is
// rotated around the start in fixed increments; if nothing works the raw
// position is used.
func (sp *shapePlacer) place(offset [2]float64, radius, rotation float64) orb.Point {
	dist := radius * math.Hypot(offset[0], offset[1])
	if dist == 0 {
		return sp.start
	}
	base := rotation - math.Atan2(offset[1], offset[0])*180/math.Pi

	raw := geo.PointAtBearingAndDistance(sp.start, base, dist)
	if sp.acceptable(raw) {
		return raw
	}
	for attempt := 1; attempt <= sp.attempts; attempt++ {
		p := geo.PointAtBearingAndDistance(sp.start, base+float64(attempt)*sp.nudgeDeg, dist)
		if sp.acceptable(p) {
			return p
		}
	}
	return raw
}

func (sp *shapePlacer) waypoints(t shapeTemplate, radius, rotation float64) []orb.Point {
	out := make([]orb.Point, 0, len(t.offsets))
	for _, o := range t.offsets {
		out = append(out, sp.place(o, radius, rotation))
	}
	return out
}

// fallbackRequests builds one loop request per shape × rotation × scale.
// Radii are chosen so the straight-line perimeter times RoadFactor matches
// the target; rotations are staggered per shape so shapes fan out differently.
func fallbackRequests(start orb.Point, targetMeters float64, polygon *domain.Polygon, arterials []domain.Way, p Params) []loopRequest {
	rotations := max(p.FallbackRotations, 1)
	scales := p.FallbackScales
	if len(scales) == 0 {
		scales = []float64{1}
	}

	sp := &shapePlacer{
		start:     start,
		polygon:   polygon,
		arterials: newArterialIndex(arterials),
		nudgeDeg:  p.NudgeDegrees,
		attempts:  p.NudgeAttempts,
	}

	step := 360.0 / float64(rotations)
	reqs := make([]loopRequest, 0, len(shapeTemplates)*rotations*len(scales))
	for si, t := range shapeTemplates {
		base := targetMeters / (p.RoadFactor * t.unitPerimeter())
		stagger := float64(si) * step / float64(len(shapeTemplates))
		for r := 0; r < rotations; r++ {
			rotation := float64(r)*step + stagger
			for _, scale := range scales {
				reqs = append(reqs, loopRequest{
					Waypoints: sp.waypoints(t, base*scale, rotation),
					Source:    domain.SourceFallback,
				})
			}
		}
	}
	return reqs
}
