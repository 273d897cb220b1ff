package api

import (
	"loop-route-service/internal/api/handlers"
	"loop-route-service/internal/ports"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
// geocoder may be nil.
func NewRouter(finder handlers.RouteFinder, geocoder ports.Geocoder) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware, recoverMiddleware)

	loops := &handlers.LoopHandler{Finder: finder, Geocoder: geocoder}

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/loops", loops.Loops)
	r.Post("/loops/stream", loops.LoopsStream)
	r.Post("/routes", loops.Routes)

	return r
}
