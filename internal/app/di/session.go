package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authadapters "foodshare_backend/internal/feature/auth/adapters"
	"foodshare_backend/internal/feature/auth/usecase"
	"foodshare_backend/internal/platform/session"
)

// NewSessionRepository returns the Redis session store when rdb is set
// and the SQL sessions table otherwise.
func NewSessionRepository(rdb *redis.Client, db *gorm.DB) usecase.SessionRepository {
	if rdb != nil {
		return session.NewSessionRedis(rdb, session.DefaultPrefix)
	}
	return authadapters.NewSessionGorm(db)
}
