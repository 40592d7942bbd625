// Package handler provides the HTTP handlers of the auth feature.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"foodshare_backend/internal/api"
	"foodshare_backend/internal/feature/auth/usecase"
	"foodshare_backend/internal/shared/actor"
)

const (
	msgInvalidRegistration = "Invalid registration details"
	msgEmailTaken          = "Email is already registered"
	msgInvalidCredentials  = "Invalid login credentials"
	msgLoggedOut           = "Successfully logged out"
	msgLogoutFailed        = "Failed to log out"
	msgServerError         = "Server error"
	msgUnauthorized        = "Please authenticate"
)

// AuthUsecase defines the auth operations used by the HTTP layer.
type AuthUsecase interface {
	Register(ctx context.Context, in usecase.RegisterInput, meta usecase.ClientMeta) (*usecase.AuthResult, error)
	Login(ctx context.Context, email, password string, meta usecase.ClientMeta) (*usecase.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	auth AuthUsecase
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth AuthUsecase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func clientMeta(c *gin.Context) usecase.ClientMeta {
	return usecase.ClientMeta{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
}

func toAuthResponse(res *usecase.AuthResult) api.AuthResponse {
	return api.AuthResponse{
		User: api.User{
			ID:        res.User.ID,
			Name:      res.User.Name,
			Email:     openapi_types.Email(res.User.Email),
			Role:      api.Role(res.User.Role),
			CreatedAt: res.User.CreatedAt,
		},
		Token: res.Token,
	}
}

// Register handles POST /auth/register.
// - binding or validation failure: 400
// - email already taken: 400
// - success: 201 with the user and a token
func (h *AuthHandler) Register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("register validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgInvalidRegistration})
		return
	}

	res, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    string(req.Email),
		Password: req.Password,
		Role:     string(req.Role),
	}, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrEmailAlreadyExists):
			slog.Warn("register failed", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgEmailTaken})
		case errors.Is(err, usecase.ErrInvalidRegistration):
			slog.Warn("register failed", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgInvalidRegistration})
		default:
			slog.Error("register failed", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		}
		return
	}

	slog.Info("user registered", "user_id", res.User.ID, "role", res.User.Role, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

// Login handles POST /auth/login.
// Unknown emails and wrong passwords get the same 400 so accounts cannot be enumerated.
func (h *AuthHandler) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgInvalidCredentials})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), string(req.Email), req.Password, clientMeta(c))
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			slog.Warn("login failed", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgInvalidCredentials})
			return
		}
		slog.Error("login failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	slog.Info("user login successful", "user_id", res.User.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, toAuthResponse(res))
}

// Logout handles POST /auth/logout by revoking the session behind the bearer token.
func (h *AuthHandler) Logout(c *gin.Context) {
	a, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: msgUnauthorized})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), a.SessionID); err != nil {
		slog.Error("logout failed", "error", err, "user_id", a.UserID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgLogoutFailed})
		return
	}

	slog.Info("user logged out", "user_id", a.UserID)
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgLoggedOut})
}
