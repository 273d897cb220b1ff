package domain

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func square() []orb.Point {
	return []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}}
}

func TestNewPolygonRejectsDegenerateInput(t *testing.T) {
	_, err := NewPolygon([]orb.Point{{0, 0}, {1, 1}, {0, 0}})
	if !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("err = %v, want ErrInvalidPolygon", err)
	}
}

func TestPolygonContainsEvenOdd(t *testing.T) {
	p, err := NewPolygon(square())
	require.NoError(t, err)

	require.True(t, p.Contains(orb.Point{0.005, 0.005}))
	require.False(t, p.Contains(orb.Point{0.02, 0.005}))
	require.False(t, p.Contains(orb.Point{-0.001, 0.005}))

	// Concave "U": the notch is outside even though it is inside the bound.
	u, err := NewPolygon([]orb.Point{{0, 0}, {3, 0}, {3, 3}, {2, 3}, {2, 1}, {1, 1}, {1, 3}, {0, 3}})
	require.NoError(t, err)
	require.False(t, u.Contains(orb.Point{1.5, 2}))
	require.True(t, u.Contains(orb.Point{0.5, 2}))
}

func TestPolygonInsideFraction(t *testing.T) {
	p, err := NewPolygon(square())
	require.NoError(t, err)

	path := orb.LineString{{0.001, 0.001}, {0.002, 0.002}, {0.003, 0.003}, {0.5, 0.5}}
	require.InDelta(t, 0.75, p.InsideFraction(path), 1e-9)
	require.Zero(t, p.InsideFraction(nil))
}

func TestPolygonCentroidAndExtent(t *testing.T) {
	p, err := NewPolygon(square())
	require.NoError(t, err)

	c := p.Centroid()
	require.InDelta(t, 0.005, c.Lon(), 1e-9)
	require.InDelta(t, 0.005, c.Lat(), 1e-9)

	// Half diagonal of a ~1.1km square is ~786m.
	require.InDelta(t, 786, p.ExtentMeters(c), 10)
}
