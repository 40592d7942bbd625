package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"foodshare_backend/internal/feature/auth/domain/entity"
	"foodshare_backend/internal/feature/auth/usecase"
)

// sessionGorm is a SQL implementation of the SessionRepository interface.
type sessionGorm struct {
	db *gorm.DB
}

var _ usecase.SessionRepository = (*sessionGorm)(nil)

// NewSessionGorm creates a new instance of sessionGorm.
func NewSessionGorm(db *gorm.DB) *sessionGorm {
	return &sessionGorm{db: db}
}

// Create persists a new session to the database.
func (r *sessionGorm) Create(ctx context.Context, session *entity.Session) error {
	return r.db.WithContext(ctx).Create(SessionModelFromEntity(session)).Error
}

// FindByID retrieves a session by its token jti.
func (r *sessionGorm) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	var model SessionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Revoke marks a session as revoked by its ID.
func (r *sessionGorm) Revoke(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ?", id).
		Update("revoked_at", time.Now())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usecase.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes all expired sessions from storage.
func (r *sessionGorm) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&SessionModel{})
	return result.RowsAffected, result.Error
}

// CountByUserID returns the number of active sessions for a user.
func (r *sessionGorm) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Count(&count).Error
	return count, err
}

// DeleteOldestByUserID deletes the oldest active session for a user.
func (r *sessionGorm) DeleteOldestByUserID(ctx context.Context, userID uint) error {
	var oldest SessionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Order("created_at ASC").
		First(&oldest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // No sessions to delete
		}
		return err
	}
	return r.db.WithContext(ctx).Delete(&SessionModel{}, "id = ?", oldest.ID).Error
}
