package di

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"foodshare_backend/internal/app/config"
	"foodshare_backend/internal/platform/db"
	platformmongo "foodshare_backend/internal/platform/mongo"
	platformredis "foodshare_backend/internal/platform/redis"
)

// Stores holds the connections shared by the server and the seeder.
type Stores struct {
	DB    *gorm.DB
	Redis *redis.Client
	Mongo *mongo.Database
}

// OpenStores connects to the SQL database and, when configured, Redis and MongoDB.
// An unreachable Redis is tolerated unless the location index lives there.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var models []any
	if cfg.DB.RunMigrations {
		models = Models()
	}
	gdb, err := db.Open(db.Config{
		Driver:     cfg.DB.Driver,
		Host:       cfg.DB.Host,
		Port:       cfg.DB.Port,
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Name:       cfg.DB.Name,
		SSLMode:    cfg.DB.SSLMode,
		SQLitePath: cfg.DB.SQLitePath,
	}, models...)
	if err != nil {
		return nil, err
	}
	s := &Stores{DB: gdb}

	if cfg.Redis.Enabled() {
		rdb, err := platformredis.NewRedisClient(ctx, platformredis.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		switch {
		case err == nil:
			s.Redis = rdb
		case cfg.Posts.LocationIndex == config.IndexRedis:
			return nil, errors.Join(err, s.Close(ctx))
		default:
			slog.Warn("Redis unavailable; sessions fall back to SQL", "addr", cfg.Redis.Addr(), "error", err)
		}
	}

	if cfg.Posts.Store == config.PostStoreMongo {
		client, err := platformmongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, errors.Join(err, s.Close(ctx))
		}
		s.Mongo = client.Database(cfg.Mongo.Database)
	}
	return s, nil
}

// Close releases every open connection.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Mongo != nil {
		errs = append(errs, s.Mongo.Client().Disconnect(ctx))
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	errs = append(errs, db.Close(s.DB))
	return errors.Join(errs...)
}
