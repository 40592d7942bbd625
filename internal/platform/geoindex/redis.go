package geoindex

import (
	"context"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"

	"foodshare_backend/internal/platform/geo"
)

const (
	// DefaultGeoKey is the sorted set holding post locations.
	DefaultGeoKey = "posts:geo"

	// MaxRedisLatitude is the latitude limit of Redis GEO commands.
	MaxRedisLatitude = 85.05112878

	// redisEarthRadiusKm is the sphere Redis computes GEO distances on.
	redisEarthRadiusKm = 6372.7976
)

// ErrUnsupportedLatitude is returned for points Redis GEO cannot store.
var ErrUnsupportedLatitude = fmt.Errorf("%w: latitude beyond ±%v is not supported by the redis index", geo.ErrInvalidPoint, MaxRedisLatitude)

// RedisGeoIndex keeps post locations in a Redis GEO sorted set so every API
// instance shares one index.
type RedisGeoIndex struct {
	rdb *redis.Client
	key string
}

var _ Index = (*RedisGeoIndex)(nil)

// NewRedisGeoIndex creates an index on key. An empty key selects DefaultGeoKey.
func NewRedisGeoIndex(rdb *redis.Client, key string) *RedisGeoIndex {
	if key == "" {
		key = DefaultGeoKey
	}
	return &RedisGeoIndex{rdb: rdb, key: key}
}

// Backend returns "redis".
func (r *RedisGeoIndex) Backend() string { return "redis" }

// CheckPoint rejects invalid points and latitudes Redis GEO cannot encode.
func (r *RedisGeoIndex) CheckPoint(p geo.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if math.Abs(p.Latitude) > MaxRedisLatitude {
		return ErrUnsupportedLatitude
	}
	return nil
}

// Insert stores the point with GEOADD, replacing any previous position of id.
func (r *RedisGeoIndex) Insert(ctx context.Context, id string, p geo.Point) error {
	if err := r.CheckPoint(p); err != nil {
		return err
	}
	if err := r.rdb.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      id,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index post %s: %w", id, err)
	}
	return nil
}

// Remove drops id from the sorted set.
func (r *RedisGeoIndex) Remove(ctx context.Context, id string) error {
	if err := r.rdb.ZRem(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("failed to unindex post %s: %w", id, err)
	}
	return nil
}

// Clear deletes the sorted set.
func (r *RedisGeoIndex) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

// QueryRadius runs GEORADIUS with a radius converted to Redis' sphere and padded
// for geohash precision. Distances are recomputed with the service's earth radius
// from the coordinates Redis returns.
func (r *RedisGeoIndex) QueryRadius(ctx context.Context, center geo.Point, radiusKm float64) ([]Hit, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := geo.ValidateRadius(radiusKm); err != nil {
		return nil, err
	}
	if math.Abs(center.Latitude) > MaxRedisLatitude {
		return nil, ErrUnsupportedLatitude
	}

	locs, err := r.rdb.GeoRadius(ctx, r.key, center.Longitude, center.Latitude, &redis.GeoRadiusQuery{
		Radius:    redisRadius(radiusKm),
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius query failed: %w", err)
	}

	hits := make([]Hit, 0, len(locs))
	for _, l := range locs {
		d := geo.DistanceKm(center, geo.Point{Longitude: l.Longitude, Latitude: l.Latitude})
		hits = append(hits, Hit{PostID: l.Name, DistanceKm: d})
	}
	sortHits(hits)
	return hits, nil
}

// redisRadius converts radiusKm to the same central angle on Redis' sphere
// and widens it by the error of 52-bit geohash coordinates.
func redisRadius(radiusKm float64) float64 {
	return radiusKm*redisEarthRadiusKm/geo.EarthRadiusKm*1.0001 + 0.01
}
