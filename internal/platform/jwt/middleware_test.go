package jwtmw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare_backend/internal/shared/actor"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type authenticatorFunc func(ctx context.Context, token string) (*actor.Actor, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, token string) (*actor.Actor, error) {
	return f(ctx, token)
}

func newRouter(auth Authenticator, role string) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{AuthRequired(auth)}
	if role != "" {
		chain = append(chain, RequireRole(role))
	}
	chain = append(chain, func(c *gin.Context) {
		a, _ := actor.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": a.UserID})
	})
	r.GET("/", chain...)
	return r
}

func serve(t *testing.T, r *gin.Engine, header string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestAuthRequired_MissingBearerToken(t *testing.T) {
	called := false
	auth := authenticatorFunc(func(ctx context.Context, token string) (*actor.Actor, error) {
		called = true
		return nil, nil
	})

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "bearer token123", "Bearertoken123", "Bearer ", "Bearer    "} {
		t.Run(fmt.Sprintf("%q", header), func(t *testing.T) {
			code, body := serve(t, newRouter(auth, ""), header)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Equal(t, map[string]any{"error": msgTokenRequired}, body)
		})
	}
	assert.False(t, called, "authenticator must not run without a token")
}

func TestAuthRequired_Authenticate(t *testing.T) {
	donor := &actor.Actor{UserID: 3, Role: "donor", SessionID: "s-3"}

	tests := []struct {
		name           string
		result         *actor.Actor
		err            error
		expectedStatus int
		expectedBody   map[string]any
	}{
		{
			name:           "valid token",
			result:         donor,
			expectedStatus: http.StatusOK,
			expectedBody:   map[string]any{"user_id": float64(3)},
		},
		{
			name:           "rejected token",
			err:            fmt.Errorf("%w: session revoked", actor.ErrUnauthenticated),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   map[string]any{"error": msgUnauthenticated},
		},
		{
			name:           "storage failure",
			err:            errors.New("failed to load session: connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   map[string]any{"error": msgServerError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := authenticatorFunc(func(ctx context.Context, token string) (*actor.Actor, error) {
				assert.Equal(t, "abc.def.ghi", token)
				return tt.result, tt.err
			})

			code, body := serve(t, newRouter(auth, ""), "Bearer abc.def.ghi")

			assert.Equal(t, tt.expectedStatus, code)
			assert.Equal(t, tt.expectedBody, body)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name           string
		role           string
		expectedStatus int
	}{
		{"donor passes", "donor", http.StatusOK},
		{"consumer is forbidden", "consumer", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := authenticatorFunc(func(ctx context.Context, token string) (*actor.Actor, error) {
				return &actor.Actor{UserID: 1, Role: tt.role, SessionID: "s"}, nil
			})

			code, _ := serve(t, newRouter(auth, "donor"), "Bearer token")

			assert.Equal(t, tt.expectedStatus, code)
		})
	}

	t.Run("without actor", func(t *testing.T) {
		r := gin.New()
		r.GET("/", RequireRole("donor"), func(c *gin.Context) { c.Status(http.StatusOK) })

		code, body := serve(t, r, "")

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, map[string]any{"error": msgUnauthenticated}, body)
	})
}

func TestAuthRequired_WithTokenManager(t *testing.T) {
	m, err := NewTokenManager("middleware-secret")
	require.NoError(t, err)

	// Minimal authenticator over the real token manager.
	auth := authenticatorFunc(func(ctx context.Context, token string) (*actor.Actor, error) {
		userID, sessionID, err := m.ParseToken(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", actor.ErrUnauthenticated, err)
		}
		return &actor.Actor{UserID: userID, Role: "donor", SessionID: sessionID}, nil
	})
	token, err := m.GenerateToken(9, "donor", "s-9", time.Now().Add(time.Minute))
	require.NoError(t, err)

	code, body := serve(t, newRouter(auth, "donor"), "Bearer "+token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"user_id": float64(9)}, body)

	code, _ = serve(t, newRouter(auth, "donor"), "Bearer "+token+"x")
	assert.Equal(t, http.StatusUnauthorized, code)
}
