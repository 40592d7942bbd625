// Package redis builds the shared Redis client.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and pings it. The client is closed when the ping fails.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		slog.Error("Redis connection failed", "address", cfg.Addr, "error", err)
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	slog.Info("Redis connection successful", "address", cfg.Addr)
	return rdb, nil
}
