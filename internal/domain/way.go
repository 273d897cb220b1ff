package domain

import "github.com/paulmach/orb"

// Way is one raw street/path geometry as delivered by the map-geometry service.
// Interior vertices are shape points; only shared vertices and endpoints are
// meaningful for topology.
type Way struct {
	ID       int64
	Highway  string
	Geometry orb.LineString
}
