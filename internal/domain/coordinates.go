package domain

import "github.com/paulmach/orb"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Point converts to the planar lon/lat representation used by the geometry code.
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// FromPoint is the inverse of Coordinates.Point.
func FromPoint(p orb.Point) Coordinates { return Coordinates{Lon: p.Lon(), Lat: p.Lat()} }

// Valid reports whether the coordinates are inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
