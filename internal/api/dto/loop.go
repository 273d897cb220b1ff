package dto

// Location is either explicit coordinates or a free-text address.
type Location struct {
	Lon     *float64 `json:"lon,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Address string   `json:"address,omitempty"`
}

type LoopRequest struct {
	Start       Location `json:"start"`
	TargetMiles float64  `json:"target_miles"`
	// Polygon is an optional list of [lon, lat] vertices, open or closed.
	Polygon [][2]float64 `json:"polygon,omitempty"`
}

type RouteRequest struct {
	Start Location `json:"start"`
	End   Location `json:"end"`
}

// StreamEvent is one NDJSON line of a streamed loop search. Kind is "route"
// for each accepted route as it arrives and "result" for the final ranked set.
type StreamEvent struct {
	Kind   string `json:"kind"`
	Route  any    `json:"route,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
