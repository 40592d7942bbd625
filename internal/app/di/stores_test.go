package di

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare_backend/internal/app/config"
)

func testConfig() *config.Config {
	return &config.Config{
		DB: config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:", RunMigrations: true},
		Posts: config.PostsConfig{
			Store:         config.PostStoreSQL,
			LocationIndex: config.IndexMemory,
			GridCellDeg:   0.25,
		},
	}
}

func TestOpenStores_SQLOnly(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStores(ctx, testConfig())

	require.NoError(t, err)
	assert.NotNil(t, s.DB)
	assert.Nil(t, s.Redis)
	assert.Nil(t, s.Mongo)
	assert.True(t, s.DB.Migrator().HasTable("food_posts"))
	assert.NoError(t, s.Close(ctx))
}

func TestOpenStores_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Host: mr.Host(), Port: mr.Port()}

	s, err := OpenStores(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, s.Redis)
	assert.NoError(t, s.Redis.Ping(ctx).Err())
	assert.NoError(t, s.Close(ctx))
}

func TestOpenStores_UnreachableRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	t.Run("tolerated for sessions", func(t *testing.T) {
		cfg := testConfig()
		cfg.Redis = config.RedisConfig{Host: host, Port: port}

		s, err := OpenStores(ctx, cfg)

		require.NoError(t, err)
		assert.Nil(t, s.Redis)
		assert.NoError(t, s.Close(ctx))
	})

	t.Run("fatal for the redis index", func(t *testing.T) {
		cfg := testConfig()
		cfg.Redis = config.RedisConfig{Host: host, Port: port}
		cfg.Posts.LocationIndex = config.IndexRedis

		_, err := OpenStores(ctx, cfg)

		assert.Error(t, err)
	})
}
