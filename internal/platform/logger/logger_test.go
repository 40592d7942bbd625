package logger

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestNew(t *testing.T) {
	l, sync, err := New(true, "warn")
	require.NoError(t, err)
	require.NotNil(t, sync)
	assert.False(t, l.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, l.Enabled(t.Context(), slog.LevelError))

	_, _, err = New(false, "loud")
	assert.Error(t, err)
}

func TestNewHandler_WritesAttributes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := slog.New(NewHandler(core))

	l.Info("user login successful", "user_id", 7)
	l.Debug("dropped")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "user login successful", entry.Message)
	assert.Equal(t, int64(7), entry.ContextMap()["user_id"])
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(slog.New(NewHandler(core))))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/bad", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/bad", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusBadRequest), entries[1].ContextMap()["status"])
}
