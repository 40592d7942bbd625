package usecase

import (
	"context"

	"foodshare_backend/internal/feature/auth/domain/entity"
)

// SessionRepository abstracts the persistence layer for session entities.
type SessionRepository interface {
	// Create persists a new session to the storage.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID retrieves a session by its ID (the token's jti).
	FindByID(ctx context.Context, id string) (*entity.Session, error)

	// Revoke marks a session as revoked by setting RevokedAt.
	Revoke(ctx context.Context, id string) error

	// DeleteExpired removes all expired sessions from storage.
	// Returns the number of deleted sessions.
	DeleteExpired(ctx context.Context) (int64, error)

	// CountByUserID returns the number of active sessions for a user.
	CountByUserID(ctx context.Context, userID uint) (int64, error)

	// DeleteOldestByUserID deletes the oldest session for a user.
	DeleteOldestByUserID(ctx context.Context, userID uint) error
}
