package main

import (
	"fmt"
	"loop-route-service/internal/domain"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// parsePoint reads "lon,lat".
func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("want lon,lat, got %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("parse lon: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("parse lat: %w", err)
	}
	c := domain.Coordinates{Lon: lon, Lat: lat}
	if !c.Valid() {
		return orb.Point{}, fmt.Errorf("coordinates out of range: %q", s)
	}
	return c.Point(), nil
}

// parsePoints reads "lon,lat;lon,lat;...".
func parsePoints(s string) ([]orb.Point, error) {
	var out []orb.Point
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := parsePoint(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
