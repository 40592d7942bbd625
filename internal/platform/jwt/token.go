// Package jwtmw signs and verifies bearer tokens and provides the gin auth middleware.
package jwtmw

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload. Subject holds the user ID and ID (jti) the session ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a TokenManager signing with secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &TokenManager{secret: []byte(secret), now: time.Now}, nil
}

// GenerateToken signs a token for the user's session that expires at expiresAt.
func (m *TokenManager) GenerateToken(userID uint, role, sessionID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies token and returns the user ID and session ID it carries.
func (m *TokenManager) ParseToken(token string) (uint, string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		// Only HMAC is accepted
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, "", fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	if claims.ID == "" {
		return 0, "", fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return uint(userID), claims.ID, nil
}
