package geoindex

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare_backend/internal/platform/geo"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestNewRedisGeoIndex_DefaultKey(t *testing.T) {
	client, _ := setupTestRedis(t)

	assert.Equal(t, DefaultGeoKey, NewRedisGeoIndex(client, "").key)
	assert.Equal(t, "custom", NewRedisGeoIndex(client, "custom").key)
	assert.Equal(t, "redis", NewRedisGeoIndex(client, "").Backend())
}

func TestRedisGeoIndex_InsertAndQuery(t *testing.T) {
	client, mr := setupTestRedis(t)
	idx := NewRedisGeoIndex(client, "")
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "rice", geo.Point{Longitude: 77.6335, Latitude: 12.9292}))
	require.NoError(t, idx.Insert(ctx, "bread", geo.Point{Longitude: 78.0900, Latitude: 12.9292}))
	assert.True(t, mr.Exists(DefaultGeoKey))

	hits, err := idx.QueryRadius(ctx, geo.Point{Longitude: 77.6340, Latitude: 12.9290}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rice", hits[0].PostID)
	assert.InDelta(t, 0.058, hits[0].DistanceKm, 0.01)

	hits, err = idx.QueryRadius(ctx, geo.Point{Longitude: 77.6340, Latitude: 12.9290}, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"rice", "bread"}, hitIDs(hits))
}

func TestRedisGeoIndex_InsertTwiceKeepsOneEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	idx := NewRedisGeoIndex(client, "")
	ctx := context.Background()
	p := geo.Point{Longitude: 10, Latitude: 10}

	require.NoError(t, idx.Insert(ctx, "a", p))
	require.NoError(t, idx.Insert(ctx, "a", geo.Point{Longitude: 20, Latitude: 20}))

	n, err := client.ZCard(ctx, DefaultGeoKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	hits, err := idx.QueryRadius(ctx, p, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "entry moved away")
}

func TestRedisGeoIndex_RemoveAndClear(t *testing.T) {
	client, mr := setupTestRedis(t)
	idx := NewRedisGeoIndex(client, "")
	ctx := context.Background()
	p := geo.Point{Longitude: 1, Latitude: 1}

	require.NoError(t, idx.Insert(ctx, "a", p))
	require.NoError(t, idx.Insert(ctx, "b", p))
	require.NoError(t, idx.Remove(ctx, "a"))
	require.NoError(t, idx.Remove(ctx, "unknown"))

	hits, err := idx.QueryRadius(ctx, p, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(hits))

	require.NoError(t, idx.Clear(ctx))
	assert.False(t, mr.Exists(DefaultGeoKey))
}

func TestRedisGeoIndex_ZeroRadiusStillFindsExactPoint(t *testing.T) {
	client, _ := setupTestRedis(t)
	idx := NewRedisGeoIndex(client, "")
	ctx := context.Background()
	p := geo.Point{Longitude: 77.6335, Latitude: 12.9292}

	require.NoError(t, idx.Insert(ctx, "exact", p))

	hits, err := idx.QueryRadius(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact"}, hitIDs(hits))
}

func TestRedisGeoIndex_LatitudeLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	idx := NewRedisGeoIndex(client, "")
	ctx := context.Background()

	err := idx.Insert(ctx, "a", geo.Point{Longitude: 0, Latitude: 89})
	assert.ErrorIs(t, err, ErrUnsupportedLatitude)
	assert.ErrorIs(t, err, geo.ErrInvalidPoint)

	_, err = idx.QueryRadius(ctx, geo.Point{Longitude: 0, Latitude: -86}, 10)
	assert.ErrorIs(t, err, ErrUnsupportedLatitude)

	_, err = idx.QueryRadius(ctx, geo.Point{}, -1)
	assert.ErrorIs(t, err, geo.ErrInvalidRadius)

	assert.ErrorIs(t, idx.CheckPoint(geo.Point{Latitude: 86}), ErrUnsupportedLatitude)
	assert.ErrorIs(t, idx.CheckPoint(geo.Point{Longitude: 181}), geo.ErrInvalidPoint)
	assert.NoError(t, idx.CheckPoint(geo.Point{Longitude: 77.6335, Latitude: 12.9292}))
}

func TestRedisGeoIndex_PropagatesRedisErrors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	idx := NewRedisGeoIndex(rdb, "")
	ctx := context.Background()
	boom := errors.New("connection refused")

	mock.ExpectGeoAdd(DefaultGeoKey, &redis.GeoLocation{Name: "a", Longitude: 1, Latitude: 2}).SetErr(boom)
	mock.ExpectZRem(DefaultGeoKey, "a").SetErr(boom)
	mock.ExpectGeoRadius(DefaultGeoKey, 1, 2, &redis.GeoRadiusQuery{
		Radius:    redisRadius(5),
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).SetErr(boom)

	assert.ErrorIs(t, idx.Insert(ctx, "a", geo.Point{Longitude: 1, Latitude: 2}), boom)
	assert.ErrorIs(t, idx.Remove(ctx, "a"), boom)
	_, err := idx.QueryRadius(ctx, geo.Point{Longitude: 1, Latitude: 2}, 5)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRadius_CoversServiceSphere(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0, 0.5, 10, 1000, 20000} {
		// a point exactly r km away on the service sphere is at most this far on Redis' sphere
		onRedis := r * redisEarthRadiusKm / geo.EarthRadiusKm
		assert.Greater(t, redisRadius(r), onRedis, "radius %v", r)
	}
}
