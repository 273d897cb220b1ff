package app

import (
	"context"
	"fmt"
	"loop-route-service/internal/adapters/cache"
	"loop-route-service/internal/adapters/geocode"
	"loop-route-service/internal/adapters/overpass"
	"loop-route-service/internal/adapters/valhalla"
	"loop-route-service/internal/config"
	"loop-route-service/internal/platform/db"
	"loop-route-service/internal/platform/httpclient"
	"loop-route-service/internal/ports"
	"loop-route-service/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	userAgent         = "loop-route-service/1.0"
	offlineGridMeters = 120
)

// App holds the wired collaborators shared by the server and the CLI.
type App struct {
	Finder   *services.RouteFinder
	Geocoder ports.Geocoder

	closers []func() error
}

// Close releases database and redis connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// New wires concrete adapters (Valhalla, Overpass, Photon, geocode cache)
// behind ports. offline swaps the network collaborators for the in-process
// mock router and a synthetic street grid, which is useful for demos.
func New(ctx context.Context, cfg config.Config, tuning config.Tuning, offline bool) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	client := httpclient.New(cfg.HTTPTimeout, userAgent)

	var router ports.Router
	var geometry ports.MapGeometryProvider
	if offline {
		router = valhalla.NewMockRouter()
		geometry = &overpass.GridProvider{SpacingMeters: offlineGridMeters}
	} else {
		vr, err := valhalla.NewRouter(cfg.ValhallaURL, tuning.Profile, tuning.Costing, client)
		if err != nil {
			return nil, fmt.Errorf("new app: %w", err)
		}
		op, err := overpass.NewProvider(cfg.OverpassURL, client)
		if err != nil {
			return nil, fmt.Errorf("new app: %w", err)
		}
		router, geometry = vr, op
	}

	finder, err := services.NewRouteFinder(router, geometry, tuning.Search)
	if err != nil {
		return nil, fmt.Errorf("new app: %w", err)
	}
	a.Finder = finder

	if cfg.PhotonURL == "" || offline {
		return a, nil
	}

	geoCache, err := a.openGeocodeCache(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new app: %w", err)
	}
	g, err := geocode.NewPhotonGeocoder(cfg.PhotonURL, client, geoCache)
	if err != nil {
		return nil, fmt.Errorf("new app: %w", err)
	}
	a.Geocoder = g

	return a, nil
}

func (a *App) openGeocodeCache(ctx context.Context, cfg config.Config) (ports.GeocodeCache, error) {
	switch cfg.GeocodeCache {
	case "postgres":
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return cache.NewSQLGeocodeCache(conn), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		return cache.NewRedisGeocodeCache(rdb, cfg.GeocodeTTL), nil
	default:
		return nil, nil
	}
}
