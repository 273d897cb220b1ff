package overpass

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/httpclient"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

const (
	walkableHighways = "footway|path|pedestrian|residential|living_street|tertiary|unclassified|service|track|steps|cycleway"
	arterialHighways = "motorway|trunk|primary|secondary"
	queryTimeoutSec  = 25
)

// Provider implements ports.MapGeometryProvider on top of an Overpass API
// interpreter endpoint. Ways are requested with "out geom" so every node
// reference carries its coordinates and no second lookup is needed.
type Provider struct {
	client   *httpclient.Client
	endpoint string
}

func NewProvider(endpoint string, client *httpclient.Client) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("overpass endpoint is empty")
	}
	if client == nil {
		return nil, errors.New("overpass http client is nil")
	}
	return &Provider{client: client, endpoint: endpoint}, nil
}

// buildQuery renders the Overpass QL for one way query.
func buildQuery(q ports.WayQuery) (string, error) {
	var filter string
	switch q.Filter {
	case ports.WalkableWays:
		filter = fmt.Sprintf(`["highway"~"^(%s)$"]["foot"!="no"]["access"!="private"]`, walkableHighways)
	case ports.ArterialWays:
		filter = fmt.Sprintf(`["highway"~"^(%s)$"]`, arterialHighways)
	default:
		return "", fmt.Errorf("unknown way filter %q", q.Filter)
	}

	return fmt.Sprintf(
		"[out:xml][timeout:%d];way%s(around:%.0f,%.7f,%.7f);out geom;",
		queryTimeoutSec, filter, q.RadiusMeters, q.Center.Lat(), q.Center.Lon(),
	), nil
}

func (p *Provider) Ways(ctx context.Context, q ports.WayQuery) (_ []domain.Way, err error) {
	defer obs.Time(ctx, "overpass.Ways")(&err)

	if !(q.RadiusMeters > 0) {
		return nil, fmt.Errorf("overpass ways: radius must be positive, got %v", q.RadiusMeters)
	}

	ql, err := buildQuery(q)
	if err != nil {
		return nil, fmt.Errorf("overpass ways: %w", err)
	}

	form := url.Values{"data": {ql}}
	req, err := p.client.NewRequest(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var doc osm.OSM
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	return toWays(doc.Ways), nil
}

// toWays keeps ways with at least two positioned nodes.
func toWays(ways osm.Ways) []domain.Way {
	out := make([]domain.Way, 0, len(ways))
	for _, w := range ways {
		line := make(orb.LineString, 0, len(w.Nodes))
		for _, n := range w.Nodes {
			if n.Lat == 0 && n.Lon == 0 {
				continue
			}
			line = append(line, orb.Point{n.Lon, n.Lat})
		}
		if len(line) < 2 {
			continue
		}
		out = append(out, domain.Way{
			ID:       int64(w.ID),
			Highway:  w.Tags.Find("highway"),
			Geometry: line,
		})
	}
	return out
}
