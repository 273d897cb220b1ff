package ports

import (
	"context"
	"loop-route-service/internal/domain"
)

// Contract for resolving a free-text place into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.Coordinates, error)
}

// Persistent lookup of previously geocoded places.
type GeocodeCache interface {
	GetMany(ctx context.Context, queries []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
