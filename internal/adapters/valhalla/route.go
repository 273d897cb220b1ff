package valhalla

import (
	"bytes"
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
	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-polyline"
)

// Valhalla encodes shapes as polyline6.
var shapeCodec = polyline.Codec{Dim: 2, Scale: 1e6}

type location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
}

type routeRequest struct {
	Locations         []location                `json:"locations"`
	Costing           string                    `json:"costing"`
	CostingOptions    map[string]map[string]any `json:"costing_options,omitempty"`
	DirectionsOptions directionsOptions         `json:"directions_options"`
	Alternates        int                       `json:"alternates,omitempty"`
}

type directionsOptions struct {
	Units string `json:"units"`
}

type trip struct {
	Legs []struct {
		Shape string `json:"shape"`
	} `json:"legs"`
	Summary struct {
		Length float64 `json:"length"`
		Time   float64 `json:"time"`
	} `json:"summary"`
}

type routeResponse struct {
	Trip       trip `json:"trip"`
	Alternates []struct {
		Trip trip `json:"trip"`
	} `json:"alternates"`
}

// Router implements ports.Router against a Valhalla /route endpoint.
//
// Every call is a single attempt: retries would multiply the fan-out of a
// loop search by the number of candidates. The router is safe for
// concurrent use.
type Router struct {
	client  *httpclient.Client
	baseURL string
	profile string
	costing map[string]any
}

func NewRouter(baseURL, profile string, costing map[string]any, client *httpclient.Client) (*Router, error) {
	if baseURL == "" {
		return nil, errors.New("valhalla base url is empty")
	}
	if client == nil {
		return nil, errors.New("valhalla http client is nil")
	}
	if profile == "" {
		profile = "pedestrian"
	}

	return &Router{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		costing: costing,
	}, nil
}

func (r *Router) Route(ctx context.Context, req ports.RouteRequest) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "valhalla.Route")(&err)

	if len(req.Locations) < 2 {
		return nil, fmt.Errorf("valhalla route: need at least 2 locations, got %d", len(req.Locations))
	}

	body := routeRequest{
		Locations:         make([]location, 0, len(req.Locations)),
		Costing:           r.profile,
		DirectionsOptions: directionsOptions{Units: "miles"},
		Alternates:        req.Alternates,
	}
	if len(r.costing) > 0 {
		body.CostingOptions = map[string]map[string]any{r.profile: r.costing}
	}
	for _, w := range req.Locations {
		typ := "through"
		if w.Stop {
			typ = "break"
		}
		body.Locations = append(body.Locations, location{Lat: w.Point.Lat(), Lon: w.Point.Lon(), Type: typ})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal route request: %w", err)
	}

	httpReq, err := r.client.NewRequest(ctx, http.MethodPost, r.baseURL+"/route", bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, fmt.Errorf("valhalla route request: %w", err)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode route response: %w", err)
	}

	trips := make([]trip, 0, 1+len(decoded.Alternates))
	trips = append(trips, decoded.Trip)
	for _, a := range decoded.Alternates {
		trips = append(trips, a.Trip)
	}

	// A malformed trip only costs that trip; the others are still usable.
	var decodeErr error
	out := make([]domain.Route, 0, len(trips))
	for i, t := range trips {
		route, err := toRoute(t)
		if err != nil {
			decodeErr = fmt.Errorf("trip %d: %w", i, err)
			log.Warn().Str("req_id", obs.RequestID(ctx)).Int("trip", i).Err(err).Msg("skipping malformed valhalla trip")
			continue
		}
		if route.Usable() {
			out = append(out, route)
		}
	}

	if len(out) == 0 {
		if decodeErr != nil {
			return nil, decodeErr
		}
		return nil, errors.New("valhalla returned no usable trip")
	}
	return out, nil
}

// toRoute concatenates leg shapes into one path. Consecutive legs share their
// joint point, which is kept once.
func toRoute(t trip) (domain.Route, error) {
	var path orb.LineString
	for i, leg := range t.Legs {
		coords, rest, err := shapeCodec.DecodeCoords([]byte(leg.Shape))
		if err != nil {
			return domain.Route{}, fmt.Errorf("decode leg %d shape: %w", i, err)
		}
		if len(rest) != 0 {
			return domain.Route{}, fmt.Errorf("decode leg %d shape: %d trailing bytes", i, len(rest))
		}
		for j, c := range coords {
			p := orb.Point{c[1], c[0]}
			if j == 0 && len(path) > 0 && path[len(path)-1].Equal(p) {
				continue
			}
			path = append(path, p)
		}
	}

	return domain.Route{
		Path:            path,
		DistanceMiles:   t.Summary.Length,
		DurationMinutes: t.Summary.Time / 60,
	}, nil
}
