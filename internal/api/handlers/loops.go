package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"loop-route-service/internal/adapters/geocode"
	"loop-route-service/internal/api/dto"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"loop-route-service/internal/ports"
	"loop-route-service/internal/services"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// RouteFinder is the service surface the handlers depend on.
type RouteFinder interface {
	FindLoopRoutes(ctx context.Context, start orb.Point, targetMiles float64, polygon *domain.Polygon, onRoute func(domain.Route)) ([]domain.Route, error)
	FindPointToPointRoutes(ctx context.Context, start, end orb.Point) ([]domain.Route, error)
}

// LoopHandler serves loop and point-to-point route requests.
// Geocoder may be nil, in which case only explicit coordinates are accepted.
type LoopHandler struct {
	Finder   RouteFinder
	Geocoder ports.Geocoder
}

// requestError carries the status a resolution failure should map to.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func (h *LoopHandler) resolve(ctx context.Context, field string, loc dto.Location) (orb.Point, error) {
	if loc.Lon != nil && loc.Lat != nil {
		c := domain.Coordinates{Lon: *loc.Lon, Lat: *loc.Lat}
		if !c.Valid() {
			return orb.Point{}, &requestError{http.StatusBadRequest, field + " coordinates out of range"}
		}
		return c.Point(), nil
	}

	addr := strings.TrimSpace(loc.Address)
	if addr == "" {
		return orb.Point{}, &requestError{http.StatusBadRequest, field + " requires lon/lat or address"}
	}
	if h.Geocoder == nil {
		return orb.Point{}, &requestError{http.StatusBadRequest, "address lookup is not enabled"}
	}

	c, err := h.Geocoder.Geocode(ctx, addr)
	if errors.Is(err, geocode.ErrNotFound) {
		return orb.Point{}, &requestError{http.StatusBadRequest, field + " address not found"}
	}
	if err != nil {
		log.Warn().Str("req_id", obs.RequestID(ctx)).Err(err).Str("field", field).Msg("geocode failed")
		return orb.Point{}, &requestError{http.StatusBadGateway, "address lookup unavailable"}
	}
	return c.Point(), nil
}

// parseLoop validates a loop request body and resolves its start.
func (h *LoopHandler) parseLoop(w http.ResponseWriter, r *http.Request) (orb.Point, float64, *domain.Polygon, error) {
	var req dto.LoopRequest
	if err := decodeBody(w, r, &req); err != nil {
		return orb.Point{}, 0, nil, &requestError{http.StatusBadRequest, err.Error()}
	}

	if !(req.TargetMiles > 0) {
		return orb.Point{}, 0, nil, &requestError{http.StatusBadRequest, services.ErrInvalidTarget.Error()}
	}

	var polygon *domain.Polygon
	if len(req.Polygon) > 0 {
		pts := make([]orb.Point, 0, len(req.Polygon))
		for _, v := range req.Polygon {
			pts = append(pts, orb.Point{v[0], v[1]})
		}
		p, err := domain.NewPolygon(pts)
		if err != nil {
			return orb.Point{}, 0, nil, &requestError{http.StatusBadRequest, domain.ErrInvalidPolygon.Error()}
		}
		polygon = p
	}

	start, err := h.resolve(r.Context(), "start", req.Start)
	if err != nil {
		return orb.Point{}, 0, nil, err
	}
	return start, req.TargetMiles, polygon, nil
}

func (h *LoopHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		writeError(w, r, re.status, re.msg)
	case errors.Is(err, services.ErrInvalidTarget), errors.Is(err, domain.ErrInvalidPolygon):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Error().Str("req_id", obs.RequestID(r.Context())).Err(err).Msg("route search failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// Loops returns the ranked loop routes as one GeoJSON FeatureCollection.
func (h *LoopHandler) Loops(w http.ResponseWriter, r *http.Request) {
	start, target, polygon, err := h.parseLoop(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	routes, err := h.Finder.FindLoopRoutes(r.Context(), start, target, polygon, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(routes) == 0 {
		writeError(w, r, http.StatusNotFound, "no route found")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.RouteCollection(routes))
}

// LoopsStream writes each accepted route as an NDJSON line while the search
// runs, then a final line with the ranked, deduplicated result. Validation
// errors are reported before streaming starts; afterwards the status is 200.
func (h *LoopHandler) LoopsStream(w http.ResponseWriter, r *http.Request) {
	start, target, polygon, err := h.parseLoop(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(ev dto.StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			log.Debug().Str("req_id", obs.RequestID(r.Context())).Err(err).Msg("stream write failed")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	routes, err := h.Finder.FindLoopRoutes(r.Context(), start, target, polygon, func(rt domain.Route) {
		emit(dto.StreamEvent{Kind: "route", Route: dto.RouteFeature(rt, 0)})
	})
	if err != nil {
		emit(dto.StreamEvent{Kind: "result", Error: err.Error()})
		return
	}
	if len(routes) == 0 {
		emit(dto.StreamEvent{Kind: "result", Error: "no route found"})
		return
	}
	emit(dto.StreamEvent{Kind: "result", Result: dto.RouteCollection(routes)})
}

// Routes returns point-to-point alternatives between start and end.
func (h *LoopHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var req dto.RouteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	start, err := h.resolve(r.Context(), "start", req.Start)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := h.resolve(r.Context(), "end", req.End)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	routes, err := h.Finder.FindPointToPointRoutes(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(routes) == 0 {
		writeError(w, r, http.StatusNotFound, "no route found")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.RouteCollection(routes))
}
