package valhalla

import (
	"context"
	"encoding/json"
	"errors"
	"loop-route-service/internal/platform/httpclient"
	"loop-route-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeShape(t *testing.T, pts ...orb.Point) string {
	t.Helper()
	coords := make([][]float64, 0, len(pts))
	for _, p := range pts {
		coords = append(coords, []float64{p.Lat(), p.Lon()})
	}
	return string(shapeCodec.EncodeCoords(nil, coords))
}

func TestRouteBuildsRequestAndDecodesLegs(t *testing.T) {
	a := orb.Point{-122.42, 37.77}
	b := orb.Point{-122.41, 37.775}
	c := orb.Point{-122.40, 37.77}

	var got routeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := map[string]any{
			"trip": map[string]any{
				"legs": []map[string]any{
					{"shape": encodeShape(t, a, b)},
					{"shape": encodeShape(t, b, c)},
				},
				"summary": map[string]any{"length": 1.5, "time": 1800.0},
			},
			"alternates": []map[string]any{{
				"trip": map[string]any{
					"legs":    []map[string]any{{"shape": encodeShape(t, a, c)}},
					"summary": map[string]any{"length": 1.7, "time": 2040.0},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r, err := NewRouter(srv.URL+"/", "pedestrian", map[string]any{"walking_speed": 5.1}, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	routes, err := r.Route(context.Background(), ports.RouteRequest{
		Locations: []ports.Waypoint{
			{Point: a, Stop: true},
			{Point: b},
			{Point: c, Stop: true},
		},
		Alternates: 1,
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)

	require.Len(t, got.Locations, 3)
	assert.Equal(t, "break", got.Locations[0].Type)
	assert.Equal(t, "through", got.Locations[1].Type)
	assert.Equal(t, "break", got.Locations[2].Type)
	assert.InDelta(t, 37.77, got.Locations[0].Lat, 1e-9)
	assert.InDelta(t, -122.42, got.Locations[0].Lon, 1e-9)
	assert.Equal(t, "pedestrian", got.Costing)
	assert.Equal(t, "miles", got.DirectionsOptions.Units)
	assert.Equal(t, 5.1, got.CostingOptions["pedestrian"]["walking_speed"])

	primary := routes[0]
	require.Len(t, primary.Path, 3, "shared leg joint must appear once")
	assert.InDelta(t, a.Lon(), primary.Path[0].Lon(), 1e-6)
	assert.InDelta(t, a.Lat(), primary.Path[0].Lat(), 1e-6)
	assert.InDelta(t, c.Lon(), primary.Path[2].Lon(), 1e-6)
	assert.Equal(t, 1.5, primary.DistanceMiles)
	assert.Equal(t, 30.0, primary.DurationMinutes)

	assert.Equal(t, 1.7, routes[1].DistanceMiles)
	assert.Equal(t, 34.0, routes[1].DurationMinutes)
}

func TestRouteSurfacesStatusError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"No path could be found for input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	r, err := NewRouter(srv.URL, "", nil, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), ports.RouteRequest{
		Locations: []ports.Waypoint{{Point: orb.Point{0, 0}, Stop: true}, {Point: orb.Point{0.01, 0}, Stop: true}},
	})
	var se *httpclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load(), "routing calls are never retried")
}

func TestRouteRejectsEmptyTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trip":{"legs":[],"summary":{"length":0,"time":0}}}`))
	}))
	defer srv.Close()

	r, err := NewRouter(srv.URL, "pedestrian", nil, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), ports.RouteRequest{
		Locations: []ports.Waypoint{{Point: orb.Point{0, 0}, Stop: true}, {Point: orb.Point{0.01, 0}, Stop: true}},
	})
	require.Error(t, err)
}

func TestRouteSkipsMalformedAlternate(t *testing.T) {
	a, b := orb.Point{-122.42, 37.77}, orb.Point{-122.41, 37.78}
	good := encodeShape(t, a, b)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"trip": map[string]any{
				"legs":    []map[string]string{{"shape": good}},
				"summary": map[string]float64{"length": 1.2, "time": 1500},
			},
			"alternates": []map[string]any{{
				"trip": map[string]any{
					"legs":    []map[string]string{{"shape": "_"}},
					"summary": map[string]float64{"length": 1.4, "time": 1700},
				},
			}},
		})
	}))
	defer srv.Close()

	r, err := NewRouter(srv.URL, "pedestrian", nil, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	routes, err := r.Route(context.Background(), ports.RouteRequest{
		Locations:  []ports.Waypoint{{Point: a, Stop: true}, {Point: b, Stop: true}},
		Alternates: 1,
	})
	require.NoError(t, err)
	require.Len(t, routes, 1, "the broken alternate is dropped, the primary kept")
	assert.Equal(t, 1.2, routes[0].DistanceMiles)
	assert.Len(t, routes[0].Path, 2)
}

func TestRouteFailsWhenOnlyTripIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trip":{"legs":[{"shape":"_"}],"summary":{"length":1,"time":60}}}`))
	}))
	defer srv.Close()

	r, err := NewRouter(srv.URL, "pedestrian", nil, httpclient.New(time.Second, "test"))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), ports.RouteRequest{
		Locations: []ports.Waypoint{{Point: orb.Point{0, 0}, Stop: true}, {Point: orb.Point{0.01, 0}, Stop: true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trip 0")
}

func TestMockRouterAppliesDetour(t *testing.T) {
	m := NewMockRouter()
	start := orb.Point{-122.42, 37.77}
	end := orb.Point{-122.40, 37.77}

	routes, err := m.Route(context.Background(), ports.RouteRequest{
		Locations:  []ports.Waypoint{{Point: start, Stop: true}, {Point: end, Stop: true}},
		Alternates: 2,
	})
	require.NoError(t, err)
	require.Len(t, routes, 3)

	// ~1.76 km straight, times 1.25.
	assert.InDelta(t, 1.37, routes[0].DistanceMiles, 0.03)
	assert.Equal(t, start, routes[0].Path[0])
	assert.Equal(t, end, routes[0].Path[len(routes[0].Path)-1])
	assert.Greater(t, routes[1].DistanceMiles, routes[0].DistanceMiles)
	assert.Equal(t, int64(1), m.Calls())
}
