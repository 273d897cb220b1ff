package geocode

import (
	"context"
	"errors"
	"loop-route-service/internal/adapters/cache"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/httpclient"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photonBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-122.4862,37.7694]},
  "properties":{"name":"Golden Gate Park","osm_id":1}}]}`

func TestNormalize(t *testing.T) {
	require.Equal(t, "golden gate park", Normalize("  Golden   Gate\tPark "))
	require.Equal(t, "", Normalize("   "))
}

func TestGeocodeReadsThroughCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/", r.URL.Path)
		assert.Equal(t, "golden gate park", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(photonBody))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	g, err := NewPhotonGeocoder(srv.URL, httpclient.New(time.Second, "test"), cache.NewRedisGeocodeCache(rdb, 0))
	require.NoError(t, err)

	ctx := context.Background()
	want := domain.Coordinates{Lon: -122.4862, Lat: 37.7694}

	got, err := g.Geocode(ctx, "Golden Gate  Park")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = g.Geocode(ctx, "golden gate park")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int32(1), calls.Load(), "second lookup must be served from cache")
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(photonBody))
	}))
	defer srv.Close()

	g, err := NewPhotonGeocoder(srv.URL, httpclient.New(time.Second, "test"), nil)
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "golden gate park")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestGeocodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	g, err := NewPhotonGeocoder(srv.URL, httpclient.New(time.Second, "test"), nil)
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "atlantis")
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = g.Geocode(context.Background(), "   ")
	require.Error(t, err)
}
