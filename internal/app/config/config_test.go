package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

var allKeys = []string{
	"PORT", "APP_ENV", "LOG_LEVEL", "JWT_SECRET", "TOKEN_TTL", "MAX_SESSIONS_PER_USER",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"SQLITE_PATH", "RUN_MIGRATIONS", "POST_STORE", "MONGODB_URI", "MONGODB_DATABASE",
	"LOCATION_INDEX", "GRID_CELL_DEGREES", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD",
	"UPLOAD_DIR", "MAX_UPLOAD_BYTES", "IMAGE_LABELS_ENABLED", "AUTH_RATE_PER_SEC", "AUTH_RATE_BURST",
}

func missingDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, allKeys...)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(missingDotenv(t))

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Auth.MaxSessions)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.True(t, cfg.DB.RunMigrations)
	assert.Equal(t, PostStoreSQL, cfg.Posts.Store)
	assert.Equal(t, IndexNative, cfg.Posts.LocationIndex)
	assert.Equal(t, 0.25, cfg.Posts.GridCellDeg)
	assert.Equal(t, int64(5<<20), cfg.Posts.MaxUploadBytes)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 5, cfg.RateLimit.AuthBurst)
}

func TestLoad_FromEnvironment(t *testing.T) {
	unsetEnv(t, allKeys...)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POST_STORE", "mongo")
	t.Setenv("LOCATION_INDEX", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("GRID_CELL_DEGREES", "0.5")

	cfg, err := Load(missingDotenv(t))

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, PostStoreMongo, cfg.Posts.Store)
	assert.Equal(t, IndexRedis, cfg.Posts.LocationIndex)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, 0.5, cfg.Posts.GridCellDeg)
}

func TestLoad_DotenvFile(t *testing.T) {
	unsetEnv(t, allKeys...)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nPORT=9090\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	unsetEnv(t, allKeys...)

	_, err := Load(missingDotenv(t))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth:      AuthConfig{JWTSecret: "s", TokenTTL: time.Hour, MaxSessions: 5},
			DB:        DBConfig{Driver: "sqlite"},
			Posts:     PostsConfig{Store: PostStoreSQL, LocationIndex: IndexMemory, GridCellDeg: 0.25, MaxUploadBytes: 1},
			RateLimit: RateLimitConfig{AuthPerSecond: 1, AuthBurst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad driver", func(c *Config) { c.DB.Driver = "mysql" }, "DB_DRIVER"},
		{"bad store", func(c *Config) { c.Posts.Store = "file" }, "POST_STORE"},
		{"bad index", func(c *Config) { c.Posts.LocationIndex = "quadtree" }, "LOCATION_INDEX"},
		{"redis index without host", func(c *Config) { c.Posts.LocationIndex = IndexRedis }, "REDIS_HOST"},
		{"zero grid", func(c *Config) { c.Posts.GridCellDeg = 0 }, "GRID_CELL_DEGREES"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "TOKEN_TTL"},
		{"zero sessions", func(c *Config) { c.Auth.MaxSessions = 0 }, "MAX_SESSIONS_PER_USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
