// Package di wires the application's components together.
package di

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"foodshare_backend/internal/app/config"
	"foodshare_backend/internal/app/router"
	authadapters "foodshare_backend/internal/feature/auth/adapters"
	"foodshare_backend/internal/feature/auth/domain/entity"
	authhandler "foodshare_backend/internal/feature/auth/transport/handler"
	authusecase "foodshare_backend/internal/feature/auth/usecase"
	postadapters "foodshare_backend/internal/feature/posts/adapters"
	posthandler "foodshare_backend/internal/feature/posts/transport/handler"
	postusecase "foodshare_backend/internal/feature/posts/usecase"
	"foodshare_backend/internal/platform/geoindex"
	healthhandler "foodshare_backend/internal/platform/http/handler"
	jwtmw "foodshare_backend/internal/platform/jwt"
	"foodshare_backend/internal/platform/storage"
	"foodshare_backend/internal/shared/ratelimiter"
)

// Models returns the gorm models migrated at start-up.
func Models() []any {
	return []any{&entity.User{}, &authadapters.SessionModel{}, &postadapters.PostModel{}}
}

// Deps are the connections and adapters built by the caller and owned by it.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB

	// Optional. Nil disables the Redis session store and the redis location index.
	Redis *redis.Client
	// Optional. Required when Config.Posts.Store is "mongo".
	Mongo *mongo.Database

	Images *storage.LocalStore
	// Optional.
	Labeler postusecase.ImageLabeler
}

// App is the assembled service.
type App struct {
	Router  *gin.Engine
	Auth    interface{ PurgeExpiredSessions(ctx context.Context) error }
	Posts   *geoindex.IndexedPostRepository
	Limiter *ratelimiter.RateLimiter
}

// NewApp builds every usecase and handler and the router on top of d.
func NewApp(ctx context.Context, d Deps) (*App, error) {
	cfg := d.Config

	tokens, err := jwtmw.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	users := authadapters.NewUserGorm(d.DB)
	sessions := NewSessionRepository(d.Redis, d.DB)
	authUC := authusecase.NewAuthUsecase(users, sessions, tokens, cfg.Auth.TokenTTL, cfg.Auth.MaxSessions)

	store, err := NewPostStore(ctx, cfg.Posts, d.DB, d.Mongo)
	if err != nil {
		return nil, err
	}
	index, err := NewLocationIndex(cfg.Posts, d.Redis)
	if err != nil {
		return nil, err
	}
	posts, err := NewIndexedPosts(ctx, store, index)
	if err != nil {
		return nil, err
	}
	postUC := postusecase.NewPostUsecase(posts, d.Images, d.Labeler, users, int(cfg.Posts.MaxUploadBytes))

	limiter := ratelimiter.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst, 10*time.Minute)

	engine := router.NewRouter(router.Handlers{
		Auth:            authhandler.NewAuthHandler(authUC),
		Posts:           posthandler.NewPostHandler(postUC, cfg.Posts.MaxUploadBytes),
		Authenticator:   authUC,
		AuthLimiter:     limiter,
		UploadDir:       d.Images.Dir(),
		UploadURLPrefix: d.Images.URLPrefix(),
		ReadyChecks:     readyChecks(d),
		Logger:          d.Logger,
	})

	return &App{Router: engine, Auth: authUC, Posts: posts, Limiter: limiter}, nil
}

func readyChecks(d Deps) map[string]healthhandler.Check {
	checks := map[string]healthhandler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}
	}
	if d.Mongo != nil {
		checks["mongodb"] = func(ctx context.Context) error {
			return d.Mongo.Client().Ping(ctx, nil)
		}
	}
	return checks
}

// RunSweeper purges expired sessions and idle rate limiter buckets every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Auth.PurgeExpiredSessions(ctx); err != nil {
				slog.Warn("session sweep failed", "error", err)
			}
			if n := a.Limiter.Sweep(); n > 0 {
				slog.Debug("rate limiter buckets dropped", "count", n)
			}
		}
	}
}

