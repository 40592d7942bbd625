// Package adapters provides repository implementations for the auth feature.
package adapters

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"foodshare_backend/internal/feature/auth/domain/entity"
	"foodshare_backend/internal/feature/auth/usecase"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// userGorm is a SQL implementation of UserRepository backed by GORM.
type userGorm struct {
	db *gorm.DB
}

var _ usecase.UserRepository = (*userGorm)(nil)

// NewUserGorm creates a new instance of userGorm.
func NewUserGorm(db *gorm.DB) *userGorm {
	return &userGorm{db: db}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Create inserts the user. A taken email returns usecase.ErrEmailAlreadyExists.
func (r *userGorm) Create(ctx context.Context, u *entity.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return usecase.ErrEmailAlreadyExists
		}
		return err
	}
	return nil
}

// FindByEmail returns usecase.ErrUserNotFound when no user has the email.
func (r *userGorm) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByID returns usecase.ErrUserNotFound when no user has the ID.
func (r *userGorm) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// NamesByIDs returns the display names of the given users. Unknown IDs are absent from the map.
func (r *userGorm) NamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		ID   uint
		Name string
	}
	if err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Select("id", "name").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// DeleteAll removes every user. The seeder uses it to start from an empty database.
func (r *userGorm) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entity.User{}).Error
}
