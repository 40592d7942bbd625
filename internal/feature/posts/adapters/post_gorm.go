package adapters

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/feature/posts/usecase"
	"foodshare_backend/internal/platform/geo"
)

// postGorm is a SQL implementation of the post store backed by GORM.
// Radius queries use a bounding-box prefilter in SQL and an exact haversine check in Go.
type postGorm struct {
	db *gorm.DB
}

var _ usecase.PostRepository = (*postGorm)(nil)

// NewPostGorm creates a new instance of postGorm.
func NewPostGorm(db *gorm.DB) *postGorm {
	return &postGorm{db: db}
}

// Create persists a new post, assigning a UUID when the ID is empty.
func (r *postGorm) Create(ctx context.Context, post *entity.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(PostModelFromEntity(post)).Error
}

// FindByDonor returns the donor's posts, newest first.
func (r *postGorm) FindByDonor(ctx context.Context, donorID uint) ([]entity.Post, error) {
	var models []PostModel
	if err := r.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntities(models), nil
}

// FindByIDs returns the posts that still exist among ids, in no particular order.
func (r *postGorm) FindByIDs(ctx context.Context, ids []string) ([]entity.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []PostModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntities(models), nil
}

// All returns every stored post.
func (r *postGorm) All(ctx context.Context) ([]entity.Post, error) {
	var models []PostModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntities(models), nil
}

// FindWithin returns every post within radiusKm of center.
func (r *postGorm) FindWithin(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.Post, error) {
	box := geo.Bound(center, radiusKm)

	q := r.db.WithContext(ctx).Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.FullLongitude() {
		lon := r.db.Where("longitude BETWEEN ? AND ?", box.LonRanges[0].Min, box.LonRanges[0].Max)
		for _, lr := range box.LonRanges[1:] {
			lon = lon.Or("longitude BETWEEN ? AND ?", lr.Min, lr.Max)
		}
		q = q.Where(lon)
	}

	var models []PostModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]entity.Post, 0, len(models))
	for i := range models {
		p := models[i].ToEntity()
		if geo.Within(center, p.Location, radiusKm) {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdateOwned updates the post only when it belongs to donorID.
// The conditional UPDATE is the ownership check; zero affected rows means missing or foreign.
func (r *postGorm) UpdateOwned(ctx context.Context, id string, donorID uint, upd entity.PostUpdate) (*entity.Post, error) {
	var updated PostModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PostModel{}).
			Where("id = ? AND donor_id = ?", id, donorID).
			Updates(map[string]any{
				"description": upd.Description,
				"longitude":   upd.Location.Longitude,
				"latitude":    upd.Location.Latitude,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrPostNotFound
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, err
	}
	p := updated.ToEntity()
	return &p, nil
}

// DeleteOwned deletes the post only when it belongs to donorID and returns the deleted row.
func (r *postGorm) DeleteOwned(ctx context.Context, id string, donorID uint) (*entity.Post, error) {
	var deleted PostModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND donor_id = ?", id, donorID).First(&deleted).Error; err != nil {
			return err
		}
		// a concurrent delete may win between the read and this statement
		res := tx.Where("id = ? AND donor_id = ?", id, donorID).Delete(&PostModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrPostNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, err
	}
	p := deleted.ToEntity()
	return &p, nil
}

// DeleteAll removes every post.
func (r *postGorm) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PostModel{})
	return res.RowsAffected, res.Error
}

func toEntities(models []PostModel) []entity.Post {
	out := make([]entity.Post, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToEntity())
	}
	return out
}
