package jwtmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"foodshare_backend/internal/api"
	"foodshare_backend/internal/shared/actor"
)

const (
	msgTokenRequired   = "Authorization token is required"
	msgUnauthenticated = "Please authenticate"
	msgForbidden       = "Access denied"
	msgServerError     = "Server error"
)

// Authenticator resolves a bearer token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*actor.Actor, error)
}

// AuthRequired returns a Gin middleware that resolves the bearer token
// and stores the actor on the request context.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !strings.HasPrefix(header, "Bearer ") || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msgTokenRequired})
			return
		}

		a, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, actor.ErrUnauthenticated) {
				slog.Debug("authentication rejected", "error", err, "remote_addr", c.ClientIP())
				c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msgUnauthenticated})
				return
			}
			slog.Error("authentication failed", "error", err, "remote_addr", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
			return
		}

		c.Request = c.Request.WithContext(actor.WithActor(c.Request.Context(), a))
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated actor has role.
// It must run after AuthRequired.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msgUnauthenticated})
			return
		}
		if a.Role != role {
			slog.Warn("role check failed", "user_id", a.UserID, "role", a.Role, "required", role)
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: msgForbidden})
			return
		}
		c.Next()
	}
}
