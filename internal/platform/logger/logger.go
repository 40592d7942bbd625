// Package logger builds the process slog logger on top of zap.
package logger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewHandler returns a slog.Handler writing to core.
func NewHandler(core zapcore.Core) slog.Handler {
	return zapslog.NewHandler(core, zapslog.WithCaller(true))
}

// New builds a logger: JSON in production, console otherwise, at the given level
// ("debug", "info", "warn", "error"). The returned func flushes buffered entries.
func New(production bool, level string) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return slog.New(NewHandler(zl.Core())), zl.Sync, nil
}

// RequestLogger logs one line per request. 5xx responses log at error level, 4xx at warn.
func RequestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		l.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
