package dto

import (
	"loop-route-service/internal/domain"
	"math"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// Routed shapes are densely sampled; points closer than this (in degrees,
// about 10cm) to the simplified line are dropped from responses.
const simplifyDegrees = 1e-6

// RouteFeature renders one route as a GeoJSON LineString feature.
// rank is 1-based; 0 means "not ranked yet" and is omitted.
func RouteFeature(r domain.Route, rank int) *geojson.Feature {
	path := simplify.DouglasPeucker(simplifyDegrees).LineString(r.Path.Clone())
	f := geojson.NewFeature(path)
	f.Properties["distance_miles"] = round(r.DistanceMiles, 3)
	f.Properties["duration_minutes"] = round(r.DurationMinutes, 1)
	f.Properties["source"] = string(r.Source)
	if rank > 0 {
		f.Properties["rank"] = rank
	}
	return f
}

// RouteCollection renders ranked routes in order.
func RouteCollection(routes []domain.Route) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, r := range routes {
		fc.Append(RouteFeature(r, i+1))
	}
	return fc
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
