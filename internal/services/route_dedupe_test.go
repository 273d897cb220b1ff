package services

import (
	"testing"

	"loop-route-service/internal/domain"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareRoute is a square loop of side meters heading first toward bearing.
func squareRoute(start orb.Point, bearingDeg, side float64) domain.Route {
	var path orb.LineString
	cur := start
	for leg := 0; leg < 4; leg++ {
		b := bearingDeg + float64(leg)*90
		for i := 0; i < 10; i++ {
			path = append(path, move(cur, b, float64(i)*side/10))
		}
		cur = move(cur, b, side)
	}
	path = append(path, start)
	return domain.Route{Path: path, DistanceMiles: 4 * side / metersPerMile}
}

func TestDedupeRoutes(t *testing.T) {
	start := orb.Point{-122.42, 37.77}
	north := squareRoute(start, 0, 1000)
	northAgain := squareRoute(start, 0, 1000)
	northAgain.DistanceMiles += 0.01
	south := squareRoute(start, 180, 1000)

	p := DefaultParams()
	got := DedupeRoutes([]domain.Route{north, northAgain, south}, p.DedupeCellMeters, p.DedupeThreshold)

	require.Len(t, got, 2)
	assert.Equal(t, north.DistanceMiles, got[0].DistanceMiles, "first of two duplicates survives")
	assert.Equal(t, south.Path, got[1].Path)

	again := DedupeRoutes(got, p.DedupeCellMeters, p.DedupeThreshold)
	assert.Equal(t, got, again, "dedupe is idempotent")

	for i := range got {
		for j := i + 1; j < len(got); j++ {
			assert.Less(t, RouteSimilarity(got[i], got[j], p.DedupeCellMeters), p.DedupeThreshold)
		}
	}
}

func TestDedupeRoutesThreshold(t *testing.T) {
	start := orb.Point{-122.42, 37.77}
	a := squareRoute(start, 0, 1000)
	// Same heading, slightly larger: shares the first edges.
	b := squareRoute(start, 0, 1200)

	sim := RouteSimilarity(a, b, 150)
	require.Greater(t, sim, 0.0)
	require.Less(t, sim, 1.0)

	assert.Len(t, DedupeRoutes([]domain.Route{a, b}, 150, sim), 1, "similarity at threshold is a duplicate")
	assert.Len(t, DedupeRoutes([]domain.Route{a, b}, 150, sim+0.01), 2)
	assert.Nil(t, DedupeRoutes(nil, 150, 0.5))
}

func TestJaccardEmptySets(t *testing.T) {
	assert.Equal(t, 1.0, RouteSimilarity(domain.Route{}, domain.Route{}, 150))
}
