package adapters

import (
	"time"

	"foodshare_backend/internal/feature/auth/domain/entity"
)

const maxUserAgentLength = 512

// SessionModel is the GORM model for the sessions table.
type SessionModel struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    uint       `gorm:"not null;index:idx_sessions_user_created,priority:1"`
	UserAgent string     `gorm:"size:512"`
	IPAddress string     `gorm:"size:45"` // IPv6 max length
	CreatedAt time.Time  `gorm:"not null;index:idx_sessions_user_created,priority:2"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}

// ToEntity converts the GORM model to a domain entity.
func (m *SessionModel) ToEntity() *entity.Session {
	return &entity.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		UserAgent: m.UserAgent,
		IPAddress: m.IPAddress,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		RevokedAt: m.RevokedAt,
	}
}

// SessionModelFromEntity converts a domain entity to a GORM model.
// Over-long User-Agent headers are cut to the column size.
func SessionModelFromEntity(s *entity.Session) *SessionModel {
	ua := s.UserAgent
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}
	return &SessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		UserAgent: ua,
		IPAddress: s.IPAddress,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: s.RevokedAt,
	}
}
