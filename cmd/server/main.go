package main

import (
	"context"
	"errors"
	"loop-route-service/internal/api"
	"loop-route-service/internal/app"
	"loop-route-service/internal/config"
	"loop-route-service/internal/platform/obs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the application composition root.
// It wires concrete adapters (Valhalla, Overpass, Photon, geocode cache)
// behind ports and starts the HTTP server.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	obs.SetupLogger(cfg.LogLevel, config.Get("LOG_PRETTY", "") != "")
	if envErr != nil {
		log.Info().Msg("no .env file found (using environment variables)")
	}

	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load tuning")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, tuning, config.Get("OFFLINE", "") != "")
	if err != nil {
		log.Fatal().Err(err).Msg("wire application")
	}
	defer a.Close()

	handler := api.NewRouter(a.Finder, a.Geocoder)

	// Loop searches fan out to many routing calls, so the write timeout is generous.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("profile", tuning.Profile).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
