package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"loop-route-service/internal/adapters/geocode"
	"loop-route-service/internal/domain"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	loops    []domain.Route
	direct   []domain.Route
	err      error
	gotStart orb.Point
	gotPoly  *domain.Polygon
}

func (f *fakeFinder) FindLoopRoutes(ctx context.Context, start orb.Point, targetMiles float64, polygon *domain.Polygon, onRoute func(domain.Route)) ([]domain.Route, error) {
	f.gotStart = start
	f.gotPoly = polygon
	if f.err != nil {
		return nil, f.err
	}
	if onRoute != nil {
		for _, r := range f.loops {
			onRoute(r)
		}
	}
	return f.loops, nil
}

func (f *fakeFinder) FindPointToPointRoutes(ctx context.Context, start, end orb.Point) ([]domain.Route, error) {
	return f.direct, f.err
}

type fakeGeocoder map[string]domain.Coordinates

func (g fakeGeocoder) Geocode(ctx context.Context, q string) (domain.Coordinates, error) {
	c, ok := g[q]
	if !ok {
		return domain.Coordinates{}, geocode.ErrNotFound
	}
	return c, nil
}

func sampleRoute(miles float64) domain.Route {
	return domain.Route{
		Path:            orb.LineString{{-122.42, 37.77}, {-122.41, 37.78}, {-122.42, 37.77}},
		DistanceMiles:   miles,
		DurationMinutes: miles * 20,
		Source:          domain.SourceGraphSearch,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	h := NewRouter(&fakeFinder{}, nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoopsReturnsFeatureCollection(t *testing.T) {
	f := &fakeFinder{loops: []domain.Route{sampleRoute(3.0), sampleRoute(3.2)}}
	h := NewRouter(f, nil)

	rec := do(t, h, http.MethodPost, "/loops", `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3,
		"polygon":[[-122.43,37.76],[-122.40,37.76],[-122.40,37.79],[-122.43,37.79]]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 3.0, fc.Features[0].Properties.MustFloat64("distance_miles"))
	assert.Equal(t, 1.0, fc.Features[0].Properties.MustFloat64("rank"))
	assert.Equal(t, "graph_search", fc.Features[0].Properties.MustString("source"))
	_, ok := fc.Features[0].Geometry.(orb.LineString)
	assert.True(t, ok)

	assert.Equal(t, orb.Point{-122.42, 37.77}, f.gotStart)
	require.NotNil(t, f.gotPoly)
}

func TestLoopsInputErrors(t *testing.T) {
	h := NewRouter(&fakeFinder{}, nil)

	cases := map[string]string{
		"zero target":      `{"start":{"lon":-122.42,"lat":37.77},"target_miles":0}`,
		"negative target":  `{"start":{"lon":-122.42,"lat":37.77},"target_miles":-1}`,
		"bad polygon":      `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3,"polygon":[[0,0],[1,1]]}`,
		"missing start":    `{"target_miles":3}`,
		"address disabled": `{"start":{"address":"dolores park"},"target_miles":3}`,
		"unknown field":    `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3,"speed":4}`,
		"out of range":     `{"start":{"lon":-222.42,"lat":37.77},"target_miles":3}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/loops", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestLoopsEmptyResultIsNotFound(t *testing.T) {
	h := NewRouter(&fakeFinder{}, nil)

	rec := do(t, h, http.MethodPost, "/loops", `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no route found"}`, rec.Body.String())
}

func TestLoopsUnexpectedErrorIs500(t *testing.T) {
	h := NewRouter(&fakeFinder{err: errors.New("boom")}, nil)

	rec := do(t, h, http.MethodPost, "/loops", `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoopsResolvesAddress(t *testing.T) {
	f := &fakeFinder{loops: []domain.Route{sampleRoute(3)}}
	h := NewRouter(f, fakeGeocoder{"dolores park": {Lon: -122.4276, Lat: 37.7596}})

	rec := do(t, h, http.MethodPost, "/loops", `{"start":{"address":"dolores park"},"target_miles":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orb.Point{-122.4276, 37.7596}, f.gotStart)

	rec = do(t, h, http.MethodPost, "/loops", `{"start":{"address":"atlantis"},"target_miles":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoopsStreamEmitsRoutesThenResult(t *testing.T) {
	f := &fakeFinder{loops: []domain.Route{sampleRoute(3.0), sampleRoute(2.9)}}
	h := NewRouter(f, nil)

	rec := do(t, h, http.MethodPost, "/loops/stream", `{"start":{"lon":-122.42,"lat":37.77},"target_miles":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var kinds []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var ev struct {
			Kind   string          `json:"kind"`
			Result json.RawMessage `json:"result"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		kinds = append(kinds, ev.Kind)
		if ev.Kind == "result" {
			fc, err := geojson.UnmarshalFeatureCollection(ev.Result)
			require.NoError(t, err)
			assert.Len(t, fc.Features, 2)
		}
	}
	assert.Equal(t, []string{"route", "route", "result"}, kinds)
}

func TestRoutesPointToPoint(t *testing.T) {
	r := sampleRoute(1.1)
	r.Source = domain.SourceDirect
	h := NewRouter(&fakeFinder{direct: []domain.Route{r}}, nil)

	rec := do(t, h, http.MethodPost, "/routes", `{"start":{"lon":-122.42,"lat":37.77},"end":{"lon":-122.41,"lat":37.78}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "direct", fc.Features[0].Properties.MustString("source"))

	h = NewRouter(&fakeFinder{}, nil)
	rec = do(t, h, http.MethodPost, "/routes", `{"start":{"lon":-122.42,"lat":37.77},"end":{"lon":-122.41,"lat":37.78}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(&fakeFinder{}, nil)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
