package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/httpclient"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when the geocoder has no match for a query.
var ErrNotFound = errors.New("no geocode result")

const maxAttempts = 3

// PhotonGeocoder resolves free-text places through a Photon instance.
// Results are read through and written back to an optional cache.
type PhotonGeocoder struct {
	client  *httpclient.Client
	baseURL string
	cache   ports.GeocodeCache

	// inflight coalesces concurrent misses for the same normalized query.
	inflight singleflight.Group
}

func NewPhotonGeocoder(baseURL string, client *httpclient.Client, cache ports.GeocodeCache) (*PhotonGeocoder, error) {
	if baseURL == "" {
		return nil, errors.New("photon base url is empty")
	}
	if client == nil {
		return nil, errors.New("photon http client is nil")
	}
	return &PhotonGeocoder{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
	}, nil
}

// Normalize collapses whitespace and case so equivalent queries share a cache key.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (g *PhotonGeocoder) Geocode(ctx context.Context, query string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "photon.Geocode")(&err)

	norm := Normalize(query)
	if norm == "" {
		return domain.Coordinates{}, errors.New("geocode: query must be non-empty")
	}

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, []string{norm})
		if err != nil {
			log.Warn().Str("req_id", obs.RequestID(ctx)).Err(err).Msg("geocode cache read failed")
		} else if c, ok := hits[norm]; ok {
			return c, nil
		}
	}

	v, err, shared := g.inflight.Do(norm, func() (any, error) {
		return g.lookup(ctx, norm)
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	c := v.(domain.Coordinates)
	if shared {
		return c, nil
	}

	if g.cache != nil {
		if err := g.cache.PutMany(ctx, map[string]domain.Coordinates{norm: c}); err != nil {
			log.Warn().Str("req_id", obs.RequestID(ctx)).Err(err).Msg("geocode cache write failed")
		}
	}

	return c, nil
}

func (g *PhotonGeocoder) lookup(ctx context.Context, norm string) (domain.Coordinates, error) {
	endpoint := g.baseURL + "/api/"

	resp, err := g.client.DoWithRetry(ctx, maxAttempts, func() (*http.Request, error) {
		req, err := g.client.NewRequest(ctx, http.MethodGet, endpoint, nil, "")
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("q", norm)
		q.Set("limit", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode photon response: %w", err)
	}

	for _, f := range fc.Features {
		if p, ok := f.Geometry.(orb.Point); ok {
			c := domain.FromPoint(p)
			if c.Valid() {
				return c, nil
			}
		}
	}
	return domain.Coordinates{}, ErrNotFound
}
