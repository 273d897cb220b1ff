package services

import (
	"errors"
	"fmt"
)

const metersPerMile = 1609.34

// Params collects the tuned constants used by loop discovery.
//
// None of these values are derived; they were picked empirically and are
// exposed so deployments (and tests) can vary them without code changes.
type Params struct {
	// Distance window for search candidates and routed results, as factors of the target.
	MinDistanceFactor float64 `yaml:"min_distance_factor"`
	MaxDistanceFactor float64 `yaml:"max_distance_factor"`

	// Closing tolerance is min(CloseToleranceMeters, CloseToleranceFraction*target).
	CloseToleranceMeters   float64 `yaml:"close_tolerance_meters"`
	CloseToleranceFraction float64 `yaml:"close_tolerance_fraction"`

	AdmissibilitySlack     float64 `yaml:"admissibility_slack"`
	SearchCellMeters       float64 `yaml:"search_cell_meters"`
	CellRevisitCap         int     `yaml:"cell_revisit_cap"`
	TypicalEdgeMeters      float64 `yaml:"typical_edge_meters"`
	DepthHeadroom          float64 `yaml:"depth_headroom"`
	MinLoopEdges           int     `yaml:"min_loop_edges"`
	SearchPasses           int     `yaml:"search_passes"`
	MaxResultsPerPass      int     `yaml:"max_results_per_pass"`
	MaxExploredNodes       int     `yaml:"max_explored_nodes"`
	UsedEdgePenaltyDegrees float64 `yaml:"used_edge_penalty_degrees"`
	MaxCandidates          int     `yaml:"max_candidates"`

	// Graph acquisition.
	CoordPrecision    int     `yaml:"coord_precision"`
	MinGraphNodes     int     `yaml:"min_graph_nodes"`
	MaxSnapMeters     float64 `yaml:"max_snap_meters"`
	RoadFactor        float64 `yaml:"road_factor"`
	GraphRadiusFactor float64 `yaml:"graph_radius_factor"`

	// Validation.
	WaypointCount         int     `yaml:"waypoint_count"`
	MinInsideFraction     float64 `yaml:"min_inside_fraction"`
	BacktrackCellMeters   float64 `yaml:"backtrack_cell_meters"`
	BacktrackSamples      int     `yaml:"backtrack_samples"`
	ValidationConcurrency int     `yaml:"validation_concurrency"`

	// Dedupe and output.
	DedupeCellMeters float64 `yaml:"dedupe_cell_meters"`
	DedupeThreshold  float64 `yaml:"dedupe_threshold"`
	MinRoutes        int     `yaml:"min_routes"`
	MaxRoutes        int     `yaml:"max_routes"`

	// Fallback shapes.
	FallbackRotations int       `yaml:"fallback_rotations"`
	FallbackScales    []float64 `yaml:"fallback_scales"`
	NudgeDegrees      float64   `yaml:"nudge_degrees"`
	NudgeAttempts     int       `yaml:"nudge_attempts"`
}

// DefaultParams returns the constants the service ships with.
func DefaultParams() Params {
	return Params{
		MinDistanceFactor:      0.75,
		MaxDistanceFactor:      1.35,
		CloseToleranceMeters:   200,
		CloseToleranceFraction: 0.05,
		AdmissibilitySlack:     1.15,
		SearchCellMeters:       150,
		CellRevisitCap:         2,
		TypicalEdgeMeters:      90,
		DepthHeadroom:          1.5,
		MinLoopEdges:           3,
		SearchPasses:           12,
		MaxResultsPerPass:      4,
		MaxExploredNodes:       40000,
		UsedEdgePenaltyDegrees: 60,
		MaxCandidates:          32,

		CoordPrecision:    6,
		MinGraphNodes:     20,
		MaxSnapMeters:     400,
		RoadFactor:        1.4,
		GraphRadiusFactor: 2.5,

		WaypointCount:         10,
		MinInsideFraction:     0.8,
		BacktrackCellMeters:   80,
		BacktrackSamples:      60,
		ValidationConcurrency: 0,

		DedupeCellMeters: 150,
		DedupeThreshold:  0.45,
		MinRoutes:        4,
		MaxRoutes:        8,

		FallbackRotations: 4,
		FallbackScales:    []float64{0.9, 1.1},
		NudgeDegrees:      15,
		NudgeAttempts:     24,
	}
}

var ErrInvalidParams = errors.New("invalid params")

// Validate rejects parameter sets that would make the search meaningless.
func (p Params) Validate() error {
	switch {
	case p.MinDistanceFactor <= 0 || p.MaxDistanceFactor <= p.MinDistanceFactor:
		return fmt.Errorf("%w: distance factors must satisfy 0 < min < max", ErrInvalidParams)
	case p.SearchCellMeters <= 0 || p.DedupeCellMeters <= 0 || p.BacktrackCellMeters <= 0:
		return fmt.Errorf("%w: cell sizes must be positive", ErrInvalidParams)
	case p.CellRevisitCap < 1:
		return fmt.Errorf("%w: cell_revisit_cap must be >= 1", ErrInvalidParams)
	case p.TypicalEdgeMeters <= 0 || p.DepthHeadroom <= 0:
		return fmt.Errorf("%w: depth bound inputs must be positive", ErrInvalidParams)
	case p.SearchPasses < 1 || p.MaxResultsPerPass < 1 || p.MaxExploredNodes < 1:
		return fmt.Errorf("%w: search caps must be >= 1", ErrInvalidParams)
	case p.WaypointCount < 1:
		return fmt.Errorf("%w: waypoint_count must be >= 1", ErrInvalidParams)
	case p.MinInsideFraction < 0 || p.MinInsideFraction > 1:
		return fmt.Errorf("%w: min_inside_fraction must be in [0,1]", ErrInvalidParams)
	case p.DedupeThreshold <= 0 || p.DedupeThreshold > 1:
		return fmt.Errorf("%w: dedupe_threshold must be in (0,1]", ErrInvalidParams)
	case p.MaxRoutes < 1:
		return fmt.Errorf("%w: max_routes must be >= 1", ErrInvalidParams)
	case p.RoadFactor <= 0 || p.GraphRadiusFactor <= 0:
		return fmt.Errorf("%w: radius factors must be positive", ErrInvalidParams)
	case p.CoordPrecision < 0 || p.CoordPrecision > 9:
		return fmt.Errorf("%w: coord_precision must be in [0,9]", ErrInvalidParams)
	}
	return nil
}

// closeTolerance returns the maximum distance from start that still counts as closing the loop.
func (p Params) closeTolerance(targetMeters float64) float64 {
	return min(p.CloseToleranceMeters, p.CloseToleranceFraction*targetMeters)
}

func (p Params) distanceWindow(targetMeters float64) (lo, hi float64) {
	return p.MinDistanceFactor * targetMeters, p.MaxDistanceFactor * targetMeters
}
