package main

import (
	"context"
	"database/sql"
	"fmt"
	"loop-route-service/internal/adapters/cache"
	"loop-route-service/internal/adapters/repositories"
	"loop-route-service/internal/config"
	"loop-route-service/internal/platform/db"
	"loop-route-service/internal/platform/obs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	obs.SetupLogger(config.Get("LOG_LEVEL", "info"), true)
	if envErr != nil {
		log.Info().Msg("no .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/places.json")
	if err := initAndSeed(ctx, conn, seedPath); err != nil {
		log.Fatal().Err(err).Msg("dbtool failed")
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization: %w", err)
	}
	log.Info().Msg("schema ready")

	places, err := repositories.LoadPlaceSeeds(seedPath)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	if err := cache.NewSQLGeocodeCache(conn).PutMany(ctx, places); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	log.Info().Int("places", len(places)).Str("path", seedPath).Msg("seeding complete")

	return nil
}
