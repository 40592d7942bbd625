package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"foodshare_backend/internal/feature/auth/domain/entity"
	"foodshare_backend/internal/shared/actor"
)

const (
	// minPasswordLength is the minimum number of characters in a password.
	minPasswordLength = 8

	// maxPasswordLength is bcrypt's input limit in bytes.
	maxPasswordLength = 72

	// maxNameLength bounds the display name in runes.
	maxNameLength = 100

	// DefaultTokenTTL is the access token lifetime used when none is configured.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultMaxSessions is the per-user session cap used when none is configured.
	DefaultMaxSessions = 5
)

// dummyHash keeps Login's timing identical for unknown emails.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserRepository abstracts the persistence layer for user entities.
type UserRepository interface {
	// Create persists a new user. It returns ErrEmailAlreadyExists for a taken email.
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail returns ErrUserNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID returns ErrUserNotFound when no user has the ID.
	FindByID(ctx context.Context, id uint) (*entity.User, error)
}

// TokenManager issues and verifies signed access tokens.
type TokenManager interface {
	// GenerateToken signs a token for userID carrying role and the session ID as jti.
	GenerateToken(userID uint, role, sessionID string, expiresAt time.Time) (string, error)

	// ParseToken verifies the signature and expiry and returns the subject and jti.
	ParseToken(token string) (userID uint, sessionID string, err error)
}

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  *entity.User
	Token string
}

// authUsecase implements the authentication business logic.
type authUsecase struct {
	users       UserRepository
	sessions    SessionRepository
	tokens      TokenManager
	tokenTTL    time.Duration
	maxSessions int64
	now         func() time.Time
}

// NewAuthUsecase creates an authUsecase. Non-positive tokenTTL or maxSessions select the defaults.
func NewAuthUsecase(users UserRepository, sessions SessionRepository, tokens TokenManager, tokenTTL time.Duration, maxSessions int) *authUsecase {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &authUsecase{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		tokenTTL:    tokenTTL,
		maxSessions: int64(maxSessions),
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks the registration form.
func validateRegistration(in RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if len([]rune(name)) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRegistration, maxNameLength)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidRegistration)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidRegistration, minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes long", ErrInvalidRegistration, maxPasswordLength)
	}
	if !entity.ValidRole(in.Role) {
		return fmt.Errorf("%w: role must be %q or %q", ErrInvalidRegistration, entity.RoleDonor, entity.RoleConsumer)
	}
	return nil
}

// Register creates the user with a hashed password and signs them in.
func (u *authUsecase) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &entity.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: string(hashed),
		Role:     in.Role,
	}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := u.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies the credentials and issues a new session.
// bcrypt runs even for unknown emails so response time does not reveal which emails exist.
func (u *authUsecase) Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResult, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	passwordHash := dummyHash
	if err == nil {
		passwordHash = user.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if err != nil || compareErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := u.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// issueSession stores a session for user, evicting the oldest one past the cap, and signs its token.
func (u *authUsecase) issueSession(ctx context.Context, user *entity.User, meta ClientMeta) (string, error) {
	count, err := u.sessions.CountByUserID(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to count sessions: %w", err)
	}
	for ; count >= u.maxSessions; count-- {
		if err := u.sessions.DeleteOldestByUserID(ctx, user.ID); err != nil {
			return "", fmt.Errorf("failed to evict session: %w", err)
		}
	}

	now := u.now()
	session := &entity.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
		ExpiresAt: now.Add(u.tokenTTL),
	}
	if err := u.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := u.tokens.GenerateToken(user.ID, user.Role, session.ID, session.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// Logout revokes the session behind the caller's token.
func (u *authUsecase) Logout(ctx context.Context, sessionID string) error {
	if err := u.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to the calling user.
// Every failure wraps actor.ErrUnauthenticated except storage errors.
func (u *authUsecase) Authenticate(ctx context.Context, token string) (*actor.Actor, error) {
	userID, sessionID, err := u.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, err)
	}

	session, err := u.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	switch {
	case session.UserID != userID:
		return nil, fmt.Errorf("%w: session belongs to another user", actor.ErrUnauthenticated)
	case session.IsRevoked():
		return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, ErrSessionRevoked)
	case session.IsExpired():
		return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, ErrSessionExpired)
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &actor.Actor{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
	}, nil
}

// PurgeExpiredSessions deletes expired sessions and logs how many were removed.
func (u *authUsecase) PurgeExpiredSessions(ctx context.Context) error {
	n, err := u.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if n > 0 {
		slog.Info("expired sessions purged", "count", n)
	}
	return nil
}
