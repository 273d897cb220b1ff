package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"loop-route-service/internal/adapters/geocode"
	"loop-route-service/internal/domain"
	"os"
)

// Initialize the postgres schema used by the geocode cache.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		place TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_geocode_cache_updated_at
	ON geocode_cache(updated_at);
	`

	statements := []string{
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// PlaceSeed is one known place, typically a popular loop start.
type PlaceSeed struct {
	Place string  `json:"place"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
}

// LoadPlaceSeeds reads and validates a JSON array of places. Names are
// normalized the same way the geocoder keys its cache.
func LoadPlaceSeeds(jsonPath string) (map[string]domain.Coordinates, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("seed places: read %q: %w", jsonPath, err)
	}

	var data []PlaceSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("seed places: parse json: %w", err)
	}

	out := make(map[string]domain.Coordinates, len(data))
	for i, item := range data {
		place := geocode.Normalize(item.Place)
		if place == "" {
			return nil, fmt.Errorf("seed places: item at index %d: place cannot be empty", i+1)
		}
		c := domain.Coordinates{Lon: item.Lon, Lat: item.Lat}
		if !c.Valid() {
			return nil, fmt.Errorf("seed places: item %q: coordinates out of range", item.Place)
		}
		out[place] = c
	}
	return out, nil
}
