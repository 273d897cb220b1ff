package services

import (
	"math"

	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
)

// GraphEdge is one adjacency entry of a junction-to-junction span. ID is
// shared by both directions of the span; parallel spans between the same pair
// of junctions keep distinct ids.
type GraphEdge struct {
	ID     int
	To     int
	Meters float64
}

// GraphNode is a junction: a real intersection or a way endpoint.
type GraphNode struct {
	ID    int
	Point orb.Point
	Edges []GraphEdge
}

// WalkGraph is an id-indexed arena of junction nodes. Node ids are dense and
// equal to the slice index, assigned in order of first appearance. Edge ids
// are dense as well. The graph is never mutated after BuildWalkGraph returns.
type WalkGraph struct {
	nodes []GraphNode
	edges int
}

type coordKey struct{ lat, lon int64 }

func newCoordKey(p orb.Point, scale float64) coordKey {
	return coordKey{
		lat: int64(math.Round(p.Lat() * scale)),
		lon: int64(math.Round(p.Lon() * scale)),
	}
}

// BuildWalkGraph contracts raw way geometry into a junction graph.
//
// Pass 1 counts how many distinct ways reference each rounded coordinate; a
// coordinate referenced by two or more ways, revisited by the same way, or
// that ends a way, is a junction. Pass 2 walks every way accumulating
// haversine length and emits exactly one edge per junction-to-junction span,
// so interior shape points never become nodes.
//
// A span that starts and ends on the same junction (a closed footway, a way
// that touches itself) is split at interior vertices so it becomes a real
// cycle of three edges, or two when it has a single interior vertex. A span
// with no interior vertex cannot be walked and is dropped.
func BuildWalkGraph(ways []domain.Way, precision int) *WalkGraph {
	scale := math.Pow(10, float64(precision))

	refs := make(map[coordKey]int)
	forced := make(map[coordKey]struct{})
	for _, w := range ways {
		if len(w.Geometry) < 2 {
			continue
		}
		seen := make(map[coordKey]struct{}, len(w.Geometry))
		for _, p := range w.Geometry {
			k := newCoordKey(p, scale)
			if _, ok := seen[k]; ok {
				forced[k] = struct{}{}
				continue
			}
			seen[k] = struct{}{}
			refs[k]++
		}
		forced[newCoordKey(w.Geometry[0], scale)] = struct{}{}
		forced[newCoordKey(w.Geometry[len(w.Geometry)-1], scale)] = struct{}{}
	}

	isJunction := func(k coordKey) bool {
		if refs[k] >= 2 {
			return true
		}
		_, ok := forced[k]
		return ok
	}

	b := &graphBuilder{g: &WalkGraph{}, ids: make(map[coordKey]int), scale: scale}
	for _, w := range ways {
		if len(w.Geometry) < 2 {
			continue
		}

		from := 0
		for i := 1; i < len(w.Geometry); i++ {
			if !isJunction(newCoordKey(w.Geometry[i], scale)) {
				continue
			}
			b.span(w.Geometry[from : i+1])
			from = i
		}
	}

	return b.g
}

type graphBuilder struct {
	g     *WalkGraph
	ids   map[coordKey]int
	scale float64
}

func (b *graphBuilder) node(p orb.Point) int {
	k := newCoordKey(p, b.scale)
	if id, ok := b.ids[k]; ok {
		return id
	}
	id := len(b.g.nodes)
	b.ids[k] = id
	b.g.nodes = append(b.g.nodes, GraphNode{ID: id, Point: p})
	return id
}

// span emits the edge for pts, whose first and last points are junctions.
func (b *graphBuilder) span(pts []orb.Point) {
	from, to := b.node(pts[0]), b.node(pts[len(pts)-1])
	if from != to {
		b.link(from, to, pathMeters(pts))
		return
	}

	last := len(pts) - 1
	switch {
	case last < 2:
		return
	case last == 2:
		b.span(pts[:2])
		b.span(pts[1:])
	default:
		c1, c2 := last/3, 2*last/3
		b.span(pts[:c1+1])
		b.span(pts[c1 : c2+1])
		b.span(pts[c2:])
	}
}

func (b *graphBuilder) link(a, c int, meters float64) {
	id := b.g.edges
	b.g.edges++
	b.g.nodes[a].Edges = append(b.g.nodes[a].Edges, GraphEdge{ID: id, To: c, Meters: meters})
	b.g.nodes[c].Edges = append(b.g.nodes[c].Edges, GraphEdge{ID: id, To: a, Meters: meters})
}

func pathMeters(pts []orb.Point) float64 {
	var m float64
	for i := 1; i < len(pts); i++ {
		m += distance(pts[i-1], pts[i])
	}
	return m
}

// Len returns the number of junction nodes.
func (g *WalkGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Node returns the node with the given id. Ids come from this graph only.
func (g *WalkGraph) Node(id int) *GraphNode {
	return &g.nodes[id]
}

// EdgeCount returns the number of undirected edges. Edge ids are in [0, EdgeCount).
func (g *WalkGraph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return g.edges
}

// Nearest returns the node closest to p by great-circle distance. The scan is
// exhaustive and in id order, so ties resolve to the first node found.
// This is linear in graph size, acceptable for neighborhood-scale graphs.
func (g *WalkGraph) Nearest(p orb.Point) (id int, meters float64, ok bool) {
	if g.Len() == 0 {
		return 0, 0, false
	}
	best, bestDist := -1, math.Inf(1)
	for i := range g.nodes {
		if d := distance(p, g.nodes[i].Point); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist, true
}
