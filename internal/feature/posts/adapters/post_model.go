// Package adapters provides post store implementations for the posts feature.
package adapters

import (
	"time"

	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/platform/geo"
)

// PostModel is the GORM model for the food_posts table.
type PostModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	DonorID     uint      `gorm:"index;not null"`
	Description string    `gorm:"type:text;not null"`
	ImageURL    string    `gorm:"size:512;not null"`
	Labels      []string  `gorm:"serializer:json;type:text"`
	Longitude   float64   `gorm:"not null;index:idx_food_posts_lat_lon,priority:2"`
	Latitude    float64   `gorm:"not null;index:idx_food_posts_lat_lon,priority:1"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (PostModel) TableName() string {
	return "food_posts"
}

// ToEntity converts the GORM model to a domain entity.
func (m *PostModel) ToEntity() entity.Post {
	return entity.Post{
		ID:          m.ID,
		DonorID:     m.DonorID,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		Labels:      m.Labels,
		Location:    geo.Point{Longitude: m.Longitude, Latitude: m.Latitude},
		CreatedAt:   m.CreatedAt,
	}
}

// PostModelFromEntity converts a domain entity to a GORM model.
func PostModelFromEntity(p *entity.Post) *PostModel {
	return &PostModel{
		ID:          p.ID,
		DonorID:     p.DonorID,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Labels:      p.Labels,
		Longitude:   p.Location.Longitude,
		Latitude:    p.Location.Latitude,
		CreatedAt:   p.CreatedAt,
	}
}
