// Package entity defines the domain entities for the auth feature.
package entity

import "time"

// Roles a user can register with.
const (
	RoleDonor    = "donor"
	RoleConsumer = "consumer"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleDonor || role == RoleConsumer
}

// User represents a registered donor or consumer.
type User struct {
	// ID is the unique identifier for the user.
	ID uint `gorm:"primaryKey"`

	// Name is shown to consumers next to the donor's posts.
	Name string `gorm:"size:100;not null"`

	// Email is the login key. It must be unique across all users.
	Email string `gorm:"uniqueIndex;size:255;not null"`

	// Password is the bcrypt hash of the user's password, never the plaintext.
	Password string `gorm:"size:255;not null"`

	// Role is RoleDonor or RoleConsumer.
	Role string `gorm:"size:16;not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDonor reports whether the user may publish posts.
func (u *User) IsDonor() bool {
	return u.Role == RoleDonor
}
