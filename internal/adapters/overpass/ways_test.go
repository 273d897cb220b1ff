package overpass

import (
	"context"
	"loop-route-service/internal/platform/httpclient"
	"loop-route-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="Overpass API">
  <way id="101">
    <bounds minlat="37.7700" minlon="-122.4200" maxlat="37.7710" maxlon="-122.4190"/>
    <nd ref="1" lat="37.7700" lon="-122.4200"/>
    <nd ref="2" lat="37.7705" lon="-122.4195"/>
    <nd ref="3" lat="37.7710" lon="-122.4190"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Test Street"/>
  </way>
  <way id="102">
    <nd ref="4" lat="37.7720" lon="-122.4180"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>`

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery(ports.WayQuery{Center: orb.Point{-122.42, 37.77}, RadiusMeters: 1500, Filter: ports.WalkableWays})
	require.NoError(t, err)
	assert.Contains(t, q, "(around:1500,37.7700000,-122.4200000)")
	assert.Contains(t, q, `["foot"!="no"]`)
	assert.Contains(t, q, "living_street")
	assert.True(t, strings.HasSuffix(q, "out geom;"))

	q, err = buildQuery(ports.WayQuery{Center: orb.Point{0, 0}, RadiusMeters: 10, Filter: ports.ArterialWays})
	require.NoError(t, err)
	assert.Contains(t, q, "motorway|trunk|primary|secondary")
	assert.NotContains(t, q, "footway")

	_, err = buildQuery(ports.WayQuery{RadiusMeters: 10, Filter: "bogus"})
	require.Error(t, err)
}

func TestWaysDecodesGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "out geom")
		w.Header().Set("Content-Type", "application/osm3s+xml")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	p, err := NewProvider(srv.URL, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	ways, err := p.Ways(context.Background(), ports.WayQuery{Center: orb.Point{-122.42, 37.77}, RadiusMeters: 500, Filter: ports.WalkableWays})
	require.NoError(t, err)
	require.Len(t, ways, 1, "single-node way is dropped")

	w := ways[0]
	assert.Equal(t, int64(101), w.ID)
	assert.Equal(t, "residential", w.Highway)
	require.Len(t, w.Geometry, 3)
	assert.Equal(t, orb.Point{-122.42, 37.77}, w.Geometry[0])
	assert.Equal(t, orb.Point{-122.419, 37.771}, w.Geometry[2])
}

func TestWaysPropagatesServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewProvider(srv.URL, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	_, err = p.Ways(context.Background(), ports.WayQuery{Center: orb.Point{0, 0}, RadiusMeters: 100, Filter: ports.ArterialWays})
	require.Error(t, err)
}

func TestStaticProviderFiltersByClassAndRadius(t *testing.T) {
	center := orb.Point{-122.42, 37.77}
	grid := GridWays(center, 3, 3, 100)
	require.Len(t, grid, 12)

	far := GridWays(geo.PointAtBearingAndDistance(center, 90, 5000), 2, 2, 100)
	arterial := GridWays(center, 2, 1, 300)

	s := &StaticProvider{Walkable: append(grid, far...), Arterials: arterial}

	walk, err := s.Ways(context.Background(), ports.WayQuery{Center: center, RadiusMeters: 500, Filter: ports.WalkableWays})
	require.NoError(t, err)
	assert.Len(t, walk, 12)

	art, err := s.Ways(context.Background(), ports.WayQuery{Center: center, RadiusMeters: 500, Filter: ports.ArterialWays})
	require.NoError(t, err)
	assert.Len(t, art, 1)
}
