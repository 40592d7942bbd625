// Package handler provides HTTP handlers for platform-level endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Health handles /healthz. It answers without touching dependencies and is never cached.
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Ready returns a /readyz handler that runs every check with timeout.
// Any failing check turns the response into 503 and names the failed dependency.
func Ready(checks map[string]Check, timeout time.Duration) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
