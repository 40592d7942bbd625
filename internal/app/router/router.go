// Package router builds the gin engine and its route table.
package router

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"foodshare_backend/internal/api"
	authentity "foodshare_backend/internal/feature/auth/domain/entity"
	authhandler "foodshare_backend/internal/feature/auth/transport/handler"
	posthandler "foodshare_backend/internal/feature/posts/transport/handler"
	"foodshare_backend/internal/platform/http/handler"
	jwtmw "foodshare_backend/internal/platform/jwt"
	"foodshare_backend/internal/platform/logger"
	"foodshare_backend/internal/platform/metrics"
	"foodshare_backend/internal/shared/ratelimiter"
)

// Handlers are the components the routes dispatch to.
type Handlers struct {
	Auth          *authhandler.AuthHandler
	Posts         *posthandler.PostHandler
	Authenticator jwtmw.Authenticator

	// Optional. Throttles register and login per client IP.
	AuthLimiter *ratelimiter.RateLimiter

	// Uploaded images are served from UploadDir under UploadURLPrefix.
	UploadDir       string
	UploadURLPrefix string

	ReadyChecks map[string]handler.Check
	Logger      *slog.Logger
}

func NewRouter(h Handlers) *gin.Engine {
	l := h.Logger
	if l == nil {
		l = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(l), metrics.Middleware(), cors.Default())

	// Platform
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.GET("/readyz", handler.Ready(h.ReadyChecks, 2*time.Second))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/api-docs/openapi.yaml", api.ServeOpenAPI)
	if h.UploadDir != "" {
		r.Static(h.UploadURLPrefix, h.UploadDir)
	}

	authRequired := jwtmw.AuthRequired(h.Authenticator)

	auth := r.Group("/auth")
	{
		throttle := func(c *gin.Context) { c.Next() }
		if h.AuthLimiter != nil {
			throttle = h.AuthLimiter.Middleware()
		}
		auth.POST("/register", throttle, h.Auth.Register)
		auth.POST("/login", throttle, h.Auth.Login)
		auth.POST("/logout", authRequired, h.Auth.Logout)
	}

	// Donor routes: bearer token of a donor account
	donor := r.Group("/donor")
	donor.Use(authRequired, jwtmw.RequireRole(authentity.RoleDonor))
	{
		donor.POST("/createPost", h.Posts.CreatePost)
		donor.GET("/getPosts", h.Posts.GetPosts)
		donor.PUT("/editPost/:id", h.Posts.EditPost)
		donor.DELETE("/deletePost/:id", h.Posts.DeletePost)
	}

	// Consumer routes are public
	consumer := r.Group("/consumer")
	{
		consumer.GET("/nearbyPosts", h.Posts.NearbyPosts)
	}

	return r
}
