package valhalla

import (
	"context"
	"errors"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/ports"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const metersPerMile = 1609.34

// MockRouter answers route requests offline by joining the locations with
// straight lines. DetourFactor stretches the reported length the way a real
// street network would; walking speed is 3 mph.
type MockRouter struct {
	DetourFactor float64
	// StepMeters controls how densely straight legs are sampled.
	StepMeters float64
	// Fail, when set, is consulted per call and may force an error.
	Fail func(req ports.RouteRequest) bool

	calls atomic.Int64
}

func NewMockRouter() *MockRouter {
	return &MockRouter{DetourFactor: 1.25, StepMeters: 40}
}

// Calls returns how many requests the mock has served.
func (m *MockRouter) Calls() int64 { return m.calls.Load() }

func (m *MockRouter) Route(ctx context.Context, req ports.RouteRequest) ([]domain.Route, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Locations) < 2 {
		return nil, errors.New("mock route: need at least 2 locations")
	}
	if m.Fail != nil && m.Fail(req) {
		return nil, errors.New("mock route: forced failure")
	}

	step := m.StepMeters
	if step <= 0 {
		step = 40
	}
	detour := m.DetourFactor
	if detour <= 0 {
		detour = 1
	}

	path := orb.LineString{req.Locations[0].Point}
	var meters float64
	for i := 1; i < len(req.Locations); i++ {
		a, b := req.Locations[i-1].Point, req.Locations[i].Point
		d := geo.DistanceHaversine(a, b)
		meters += d
		n := max(int(d/step), 1)
		for k := 1; k <= n; k++ {
			f := float64(k) / float64(n)
			path = append(path, orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f})
		}
	}

	miles := meters * detour / metersPerMile
	primary := domain.Route{
		Path:            path,
		DistanceMiles:   miles,
		DurationMinutes: miles / 3 * 60,
	}

	out := []domain.Route{primary}
	for i := 0; i < req.Alternates; i++ {
		alt := primary
		alt.Path = append(orb.LineString(nil), path...)
		alt.DistanceMiles = miles * (1 + 0.1*float64(i+1))
		alt.DurationMinutes = alt.DistanceMiles / 3 * 60
		out = append(out, alt)
	}
	return out, nil
}
