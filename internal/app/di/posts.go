package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"foodshare_backend/internal/app/config"
	postadapters "foodshare_backend/internal/feature/posts/adapters"
	"foodshare_backend/internal/platform/geoindex"
)

// NewPostStore returns the configured durable post store.
// mongoDB is only used, and then required, when cfg.Store is "mongo".
func NewPostStore(ctx context.Context, cfg config.PostsConfig, db *gorm.DB, mongoDB *mongo.Database) (geoindex.PostStore, error) {
	switch cfg.Store {
	case config.PostStoreMongo:
		if mongoDB == nil {
			return nil, errors.New("POST_STORE=mongo requires a MongoDB connection")
		}
		store := postadapters.NewPostMongo(mongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create post indexes: %w", err)
		}
		return store, nil
	case config.PostStoreSQL:
		return postadapters.NewPostGorm(db), nil
	default:
		return nil, fmt.Errorf("unknown post store %q", cfg.Store)
	}
}

// NewLocationIndex returns the configured location index.
// The native backend has no separate index and yields nil.
func NewLocationIndex(cfg config.PostsConfig, rdb *redis.Client) (geoindex.Index, error) {
	switch cfg.LocationIndex {
	case config.IndexNative:
		return nil, nil
	case config.IndexMemory:
		return geoindex.NewGridIndex(cfg.GridCellDeg), nil
	case config.IndexRedis:
		if rdb == nil {
			return nil, errors.New("LOCATION_INDEX=redis requires a Redis connection")
		}
		return geoindex.NewRedisGeoIndex(rdb, geoindex.DefaultGeoKey), nil
	default:
		return nil, fmt.Errorf("unknown location index %q", cfg.LocationIndex)
	}
}

// NewIndexedPosts builds the post repository the usecase talks to and fills the index from the store.
func NewIndexedPosts(ctx context.Context, store geoindex.PostStore, index geoindex.Index) (*geoindex.IndexedPostRepository, error) {
	repo := geoindex.NewIndexedPostRepository(store, index)
	n, err := repo.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build location index: %w", err)
	}
	if index != nil {
		slog.Info("location index ready", "backend", index.Backend(), "entries", n)
	}
	return repo, nil
}
