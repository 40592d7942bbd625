// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Post store backends.
const (
	PostStoreSQL   = "sql"
	PostStoreMongo = "mongo"
)

// Location index backends.
const (
	// IndexNative answers radius queries from the post store itself.
	IndexNative = "native"
	// IndexRedis shares one GEO set between every process using the same Redis.
	IndexRedis = "redis"
	// IndexMemory is an in-process grid loaded at start-up. It only sees posts
	// written through the same process, so it suits a single instance with no
	// concurrent seeding.
	IndexMemory = "memory"
)

// Config is the full process configuration.
type Config struct {
	Port     string `env:"PORT,default=8080"`
	Env      string `env:"APP_ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	Auth      AuthConfig
	DB        DBConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Posts     PostsConfig
	RateLimit RateLimitConfig
}

// AuthConfig configures token signing and sessions.
type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET,required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,default=24h"`
	MaxSessions int           `env:"MAX_SESSIONS_PER_USER,default=5"`
}

// DBConfig configures the SQL database holding users, sessions and, optionally, posts.
type DBConfig struct {
	Driver        string `env:"DB_DRIVER,default=sqlite"`
	Host          string `env:"DB_HOST,default=localhost"`
	Port          string `env:"DB_PORT,default=5432"`
	User          string `env:"DB_USER"`
	Password      string `env:"DB_PASSWORD"`
	Name          string `env:"DB_NAME,default=foodshare"`
	SSLMode       string `env:"DB_SSLMODE,default=disable"`
	SQLitePath    string `env:"SQLITE_PATH,default=foodshare.db"`
	RunMigrations bool   `env:"RUN_MIGRATIONS,default=true"`
}

// MongoConfig configures the MongoDB post store.
type MongoConfig struct {
	URI      string `env:"MONGODB_URI,default=mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE,default=foodshare"`
}

// RedisConfig configures the optional Redis server. An empty Host disables Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Enabled reports whether a Redis host is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// PostsConfig configures the post store, location index and uploads.
type PostsConfig struct {
	Store          string  `env:"POST_STORE,default=sql"`
	LocationIndex  string  `env:"LOCATION_INDEX,default=native"`
	GridCellDeg    float64 `env:"GRID_CELL_DEGREES,default=0.25"`
	UploadDir      string  `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes int64   `env:"MAX_UPLOAD_BYTES,default=5242880"`
	ImageLabels    bool    `env:"IMAGE_LABELS_ENABLED,default=false"`
}

// RateLimitConfig configures the per-client limiter on the auth endpoints.
type RateLimitConfig struct {
	AuthPerSecond float64 `env:"AUTH_RATE_PER_SEC,default=1"`
	AuthBurst     int     `env:"AUTH_RATE_BURST,default=5"`
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and decodes the environment into a Config.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	if err := godotenv.Load(dotenvFiles...); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings and their combinations.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}
	switch c.Posts.Store {
	case PostStoreSQL, PostStoreMongo:
	default:
		errs = append(errs, fmt.Errorf("POST_STORE must be sql or mongo, got %q", c.Posts.Store))
	}
	switch c.Posts.LocationIndex {
	case IndexNative, IndexMemory:
	case IndexRedis:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("LOCATION_INDEX=redis requires REDIS_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("LOCATION_INDEX must be native, redis or memory, got %q", c.Posts.LocationIndex))
	}
	if c.Posts.GridCellDeg <= 0 || c.Posts.GridCellDeg > 90 {
		errs = append(errs, fmt.Errorf("GRID_CELL_DEGREES must be in (0, 90], got %v", c.Posts.GridCellDeg))
	}
	if c.Posts.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.MaxSessions <= 0 {
		errs = append(errs, errors.New("MAX_SESSIONS_PER_USER must be positive"))
	}
	if c.RateLimit.AuthPerSecond <= 0 || c.RateLimit.AuthBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_PER_SEC and AUTH_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}
