package cache

import (
	"context"
	"errors"
	"fmt"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "geocode:"

// RedisGeocodeCache stores each place as a hash {lon, lat} with a TTL.
type RedisGeocodeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisGeocodeCache wraps rdb. A zero ttl keeps entries forever.
func NewRedisGeocodeCache(rdb *redis.Client, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{rdb: rdb, ttl: ttl}
}

func (r *RedisGeocodeCache) GetMany(
	ctx context.Context,
	queries []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	if r.rdb == nil {
		return nil, errors.New("geocode cache: redis client is nil")
	}

	keys := uniqueKeys(queries)
	out := make(map[string]domain.Coordinates, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, redisKeyPrefix+k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get geocode cache: redis pipeline: %w", err)
	}

	for i, k := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		c, err := parseCoords(fields)
		if err != nil {
			return nil, fmt.Errorf("get geocode cache place=%q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func (r *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.redis.PutMany")(&err)

	if r.rdb == nil {
		return errors.New("geocode cache: redis client is nil")
	}
	if len(results) == 0 {
		return nil
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for place, c := range results {
			if strings.TrimSpace(place) == "" {
				return errors.New("empty place key")
			}
			key := redisKeyPrefix + place
			pipe.HSet(ctx, key,
				"lon", strconv.FormatFloat(c.Lon, 'f', -1, 64),
				"lat", strconv.FormatFloat(c.Lat, 'f', -1, 64),
			)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put geocode cache: %w", err)
	}
	return nil
}

func parseCoords(fields map[string]string) (domain.Coordinates, error) {
	lon, err := strconv.ParseFloat(fields["lon"], 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse lon: %w", err)
	}
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse lat: %w", err)
	}
	return domain.Coordinates{Lon: lon, Lat: lat}, nil
}
