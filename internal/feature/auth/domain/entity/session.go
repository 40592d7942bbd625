package entity

import "time"

// Session is the server-side record of one issued access token.
// Its ID is the token's jti claim, so revoking the session invalidates the token.
type Session struct {
	ID        string     // Token jti (UUID)
	UserID    uint       // Associated user ID
	UserAgent string     // Client's User-Agent header
	IPAddress string     // Client's IP address
	CreatedAt time.Time  // Session creation time
	ExpiresAt time.Time  // Equal to the token's exp claim
	RevokedAt *time.Time // Revocation time (nil if active)
}

// IsExpired returns true if the session has passed its expiration time.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsRevoked returns true if the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsValid returns true if the session is neither expired nor revoked.
func (s *Session) IsValid() bool {
	return !s.IsExpired() && !s.IsRevoked()
}
