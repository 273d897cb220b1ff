package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-level settings read from the environment.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisAddr    string
	GeocodeCache string
	GeocodeTTL   time.Duration
	ValhallaURL  string
	OverpassURL  string
	PhotonURL    string
	TuningPath   string
	LogLevel     string
	HTTPTimeout  time.Duration
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// GetDuration parses a Go duration from the environment.
func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return d, nil
}

// GetInt parses an integer from the environment.
func GetInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

// Load reads the service configuration. Callers are expected to have loaded
// a .env file (if any) beforehand.
func Load() (Config, error) {
	timeout, err := GetDuration("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	geocodeTTL, err := GetDuration("GEOCODE_TTL", 30*24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         Get("PORT", "8080"),
		DatabaseURL:  Get("DATABASE_URL", ""),
		RedisAddr:    Get("REDIS_ADDR", ""),
		GeocodeCache: strings.ToLower(Get("GEOCODE_CACHE", "none")),
		GeocodeTTL:   geocodeTTL,
		ValhallaURL:  Get("VALHALLA_URL", "https://valhalla1.openstreetmap.de"),
		OverpassURL:  Get("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		PhotonURL:    Get("PHOTON_URL", "https://photon.komoot.io"),
		TuningPath:   Get("TUNING_PATH", ""),
		LogLevel:     Get("LOG_LEVEL", "info"),
		HTTPTimeout:  timeout,
	}

	switch cfg.GeocodeCache {
	case "none", "postgres", "redis":
	default:
		return Config{}, fmt.Errorf("config: GEOCODE_CACHE must be none, postgres or redis, got %q", cfg.GeocodeCache)
	}
	if cfg.GeocodeCache == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required when GEOCODE_CACHE=postgres")
	}
	if cfg.GeocodeCache == "redis" && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("config: REDIS_ADDR is required when GEOCODE_CACHE=redis")
	}

	return cfg, nil
}
