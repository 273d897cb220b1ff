package services

import (
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
)

// DfsCandidate is a closed walk over the WalkGraph. Nodes starts and ends
// with the start node id and Edges lists the edge ids walked, in order.
//
// A walk may close on a node within the closing tolerance of start rather
// than on start itself. The final hop of Nodes back to start then has no
// graph edge: Edges is one shorter than the hops in Nodes, and GapMeters is
// the straight-line length of that hop. DistanceMeters always includes it.
type DfsCandidate struct {
	Nodes          []int
	Edges          []int
	DistanceMeters float64
	GapMeters      float64
	// Diversity is the number of distinct coarse cells the walk visits.
	Diversity int
}

// UsedEdgeSet accumulates edge ids claimed by earlier search passes of one
// invocation. It is owned by the caller and passed into each pass.
type UsedEdgeSet map[int]struct{}

func NewUsedEdgeSet() UsedEdgeSet { return make(UsedEdgeSet) }

func (s UsedEdgeSet) Has(edge int) bool {
	_, ok := s[edge]
	return ok
}

// Add claims edges for the passes that follow.
func (s UsedEdgeSet) Add(edges ...int) {
	for _, e := range edges {
		s[e] = struct{}{}
	}
}

// LoopSearchRequest describes one invocation of the loop search.
type LoopSearchRequest struct {
	Start        int
	TargetMeters float64
	Polygon      *domain.Polygon
}

// SearchLoops runs p.SearchPasses sequential depth-first passes from the start
// node, each biased toward a different compass heading, and returns the union
// of their candidates with duplicate edge sets removed.
//
// Passes run in order because every pass marks its accepted edges into used,
// which penalises those edges for the passes that follow.
func SearchLoops(g *WalkGraph, req LoopSearchRequest, p Params, used UsedEdgeSet) []DfsCandidate {
	if g.Len() == 0 || req.Start < 0 || req.Start >= g.Len() || req.TargetMeters <= 0 {
		return nil
	}

	var out []DfsCandidate
	seen := make(map[string]struct{})
	step := 360.0 / float64(p.SearchPasses)

	for pass := 0; pass < p.SearchPasses; pass++ {
		s := newLoopSearch(g, req, p, used, float64(pass)*step)
		s.run()

		for _, c := range s.results {
			used.Add(c.Edges...)

			sig := walkSignature(c.Edges)
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			out = append(out, c)
		}
	}

	return out
}

// walkSignature identifies a walk by its edge set, so a loop and its reverse
// collapse to the same key.
func walkSignature(edges []int) string {
	ids := slices.Clone(edges)
	slices.Sort(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.Itoa(id))
		b.WriteByte('.')
	}
	return b.String()
}

type loopSearch struct {
	g    *WalkGraph
	p    Params
	poly *domain.Polygon
	used UsedEdgeSet
	grid cellGrid

	start    int
	startPt  orb.Point
	half     float64
	lo, hi   float64
	limit    float64
	closeTol float64
	heading  float64
	maxDepth int

	// Shared backtracking state, mutated on enter and restored on exit.
	path      []int
	pathEdges []int
	onPath    []bool
	cells     map[gridCell]int

	explored int
	results  []DfsCandidate
}

func newLoopSearch(g *WalkGraph, req LoopSearchRequest, p Params, used UsedEdgeSet, heading float64) *loopSearch {
	startPt := g.Node(req.Start).Point
	lo, hi := p.distanceWindow(req.TargetMeters)

	maxDepth := int(math.Ceil(req.TargetMeters / p.TypicalEdgeMeters * p.DepthHeadroom))
	maxDepth = max(maxDepth, p.MinLoopEdges+1)

	return &loopSearch{
		g:        g,
		p:        p,
		poly:     req.Polygon,
		used:     used,
		grid:     newCellGrid(p.SearchCellMeters, startPt.Lat()),
		start:    req.Start,
		startPt:  startPt,
		half:     req.TargetMeters / 2,
		lo:       lo,
		hi:       hi,
		limit:    hi * p.AdmissibilitySlack,
		closeTol: p.closeTolerance(req.TargetMeters),
		heading:  heading,
		maxDepth: maxDepth,
		path:      make([]int, 0, maxDepth+1),
		pathEdges: make([]int, 0, maxDepth),
		onPath:    make([]bool, g.EdgeCount()),
		cells:     make(map[gridCell]int),
	}
}

func (s *loopSearch) run() {
	s.path = append(s.path, s.start)
	s.cells[s.grid.cell(s.startPt)] = 1
	s.dfs(s.start, -1, 0)
}

func (s *loopSearch) done() bool {
	return len(s.results) >= s.p.MaxResultsPerPass || s.explored >= s.p.MaxExploredNodes
}

type searchStep struct {
	edge  GraphEdge
	score float64
}

func (s *loopSearch) dfs(node, prev int, dist float64) {
	if s.done() {
		return
	}
	s.explored++

	depth := len(s.path) - 1
	if depth >= s.maxDepth {
		return
	}

	cur := s.g.Node(node)
	curCell := s.grid.cell(cur.Point)

	// Outbound half follows the pass heading; the return half steers home.
	desired := s.heading
	if dist >= s.half {
		desired = bearing(cur.Point, s.startPt)
	}

	steps := make([]searchStep, 0, len(cur.Edges))
	for _, e := range cur.Edges {
		if s.onPath[e.ID] {
			continue
		}

		nb := s.g.Node(e.To)
		next := dist + e.Meters
		back := distance(nb.Point, s.startPt)
		total := next + back
		if total > s.limit {
			continue
		}
		if s.poly != nil && !s.poly.Contains(nb.Point) {
			continue
		}

		// Stepping straight back to the node just left is a U-turn, except
		// over a parallel span that closes the loop on start.
		uturn := e.To == prev
		closes := back <= s.closeTol && total >= s.lo && total <= s.hi && depth+1 >= s.p.MinLoopEdges
		if closes && (!uturn || e.To == s.start) {
			s.record(e, total, back)
			if s.done() {
				return
			}
			continue
		}
		if uturn {
			continue
		}

		if c := s.grid.cell(nb.Point); c != curCell && s.cells[c] >= s.p.CellRevisitCap {
			continue
		}

		score := angleDiff(bearing(cur.Point, nb.Point), desired)
		if s.used.Has(e.ID) {
			score += s.p.UsedEdgePenaltyDegrees
		}
		steps = append(steps, searchStep{edge: e, score: score})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].score < steps[j].score })

	for _, st := range steps {
		if s.done() {
			return
		}
		e := st.edge
		c := s.grid.cell(s.g.Node(e.To).Point)
		entered := c != curCell

		s.onPath[e.ID] = true
		if entered {
			s.cells[c]++
		}
		s.path = append(s.path, e.To)
		s.pathEdges = append(s.pathEdges, e.ID)

		s.dfs(e.To, node, dist+e.Meters)

		s.pathEdges = s.pathEdges[:len(s.pathEdges)-1]
		s.path = s.path[:len(s.path)-1]
		if entered {
			s.cells[c]--
		}
		s.onPath[e.ID] = false
	}
}

func (s *loopSearch) record(last GraphEdge, total, gap float64) {
	nodes := make([]int, 0, len(s.path)+2)
	nodes = append(nodes, s.path...)
	nodes = append(nodes, last.To)
	if last.To != s.start {
		nodes = append(nodes, s.start)
	}
	edges := make([]int, 0, len(s.pathEdges)+1)
	edges = append(edges, s.pathEdges...)
	edges = append(edges, last.ID)

	visited := make(map[gridCell]struct{}, len(nodes))
	for _, id := range nodes {
		visited[s.grid.cell(s.g.Node(id).Point)] = struct{}{}
	}

	s.results = append(s.results, DfsCandidate{
		Nodes:          nodes,
		Edges:          edges,
		DistanceMeters: total,
		GapMeters:      gap,
		Diversity:      len(visited),
	})
}
