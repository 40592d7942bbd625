package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare_backend/internal/app/config"
	"foodshare_backend/internal/app/di"
	"foodshare_backend/internal/platform/db"
	"foodshare_backend/internal/platform/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// pngImage is the smallest payload recognised as image/png.
var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// setupServer assembles the whole service on in-memory SQLite with the memory location index.
func setupServer(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		Auth:      config.AuthConfig{JWTSecret: "router-test-secret", TokenTTL: time.Hour, MaxSessions: 5},
		DB:        config.DBConfig{Driver: "sqlite"},
		Posts:     config.PostsConfig{Store: config.PostStoreSQL, LocationIndex: config.IndexMemory, GridCellDeg: 0.25, MaxUploadBytes: 1 << 20},
		RateLimit: config.RateLimitConfig{AuthPerSecond: 1000, AuthBurst: 1000},
	}
	gdb, err := db.Open(db.Config{Driver: "sqlite", SQLitePath: ":memory:"}, di.Models()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	images, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	app, err := di.NewApp(context.Background(), di.Deps{
		Config: cfg,
		Logger: slog.New(slog.DiscardHandler),
		DB:     gdb,
		Images: images,
	})
	require.NoError(t, err)
	return app.Router
}

type response struct {
	Code int
	Body []byte
}

func (r response) object(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

func (r response) array(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

func do(router *gin.Engine, method, target, token, contentType string, body io.Reader) response {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return response{Code: w.Code, Body: w.Body.Bytes()}
}

func doJSON(t *testing.T, router *gin.Engine, method, target, token string, body any) response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return do(router, method, target, token, "application/json", bytes.NewReader(raw))
}

func register(t *testing.T, router *gin.Engine, name, email, role string) string {
	t.Helper()
	res := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"name": name, "email": email, "password": "pw123456", "role": role,
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	token, _ := res.object(t)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createPost(t *testing.T, router *gin.Engine, token, description string, lon, lat float64) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", description))
	require.NoError(t, mw.WriteField("latitude", fmt.Sprint(lat)))
	require.NoError(t, mw.WriteField("longitude", fmt.Sprint(lon)))
	part, err := mw.CreateFormFile("image", "food.png")
	require.NoError(t, err)
	_, err = part.Write(pngImage)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(router, http.MethodPost, "/donor/createPost", token, mw.FormDataContentType(), &buf)
}

func nearby(router *gin.Engine, params url.Values) response {
	return do(router, http.MethodGet, "/consumer/nearbyPosts?"+params.Encode(), "", "", nil)
}

func TestScenario_RegisterAndLogin(t *testing.T) {
	router := setupServer(t)

	res := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Alice", "email": "alice@x.com", "password": "pw123456", "role": "donor",
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	body := res.object(t)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, "donor", user["role"])
	assert.NotContains(t, user, "password")

	res = doJSON(t, router, http.MethodPost, "/auth/login", "", gin.H{"email": "alice@x.com", "password": "pw123456"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.object(t)["token"])

	res = doJSON(t, router, http.MethodPost, "/auth/login", "", gin.H{"email": "alice@x.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, map[string]any{"error": "Invalid login credentials"}, res.object(t))

	res = doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Alice 2", "email": "alice@x.com", "password": "pw123456", "role": "donor",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code, "duplicate email")
}

func TestScenario_NearbyPosts(t *testing.T) {
	router := setupServer(t)
	token := register(t, router, "Alice", "alice@x.com", "donor")

	res := createPost(t, router, token, "Rice, 5kg", 77.6335, 12.9292)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	created := res.object(t)
	assert.Equal(t, "Rice, 5kg", created["description"])
	assert.True(t, strings.HasPrefix(created["imageUrl"].(string), "/uploads/"))

	res = nearby(router, url.Values{"longitude": {"77.6340"}, "latitude": {"12.9290"}, "radius": {"1"}})
	require.Equal(t, http.StatusOK, res.Code)
	posts := res.array(t)
	require.Len(t, posts, 1)
	assert.Equal(t, created["id"], posts[0]["id"])
	assert.Equal(t, "Alice", posts[0]["donor"].(map[string]any)["name"])
	assert.Less(t, posts[0]["distanceKm"].(float64), 0.1)

	// about 50 km east
	res = nearby(router, url.Values{"longitude": {"78.0940"}, "latitude": {"12.9292"}, "radius": {"0.0001"}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "[]", strings.TrimSpace(string(res.Body)))

	// the uploaded image is served
	img := do(router, http.MethodGet, created["imageUrl"].(string), "", "", nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, pngImage, img.Body)
}

func TestScenario_Ownership(t *testing.T) {
	router := setupServer(t)
	tokenA := register(t, router, "Alice", "alice@x.com", "donor")
	tokenB := register(t, router, "Bob", "bob@x.com", "donor")

	res := createPost(t, router, tokenA, "Bread", 77.6335, 12.9292)
	require.Equal(t, http.StatusCreated, res.Code)
	id := res.object(t)["id"].(string)

	edit := gin.H{"description": "Bread, fresh", "latitude": 12.93, "longitude": 77.64}

	res = doJSON(t, router, http.MethodPut, "/donor/editPost/"+id, tokenB, edit)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, map[string]any{"error": "Post not found or unauthorized"}, res.object(t))

	res = doJSON(t, router, http.MethodPut, "/donor/editPost/does-not-exist", tokenA, edit)
	assert.Equal(t, http.StatusNotFound, res.Code, "missing post looks the same as a foreign one")

	res = doJSON(t, router, http.MethodPut, "/donor/editPost/"+id, tokenA, edit)
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	updated := res.object(t)
	assert.Equal(t, "Bread, fresh", updated["description"])
	assert.Equal(t, []any{77.64, 12.93}, updated["location"].(map[string]any)["coordinates"])

	// the index follows the edit
	res = nearby(router, url.Values{"longitude": {"77.64"}, "latitude": {"12.93"}, "radius": {"0.01"}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.array(t), 1)

	res = do(router, http.MethodGet, "/donor/getPosts", tokenB, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, res.array(t))

	res = do(router, http.MethodGet, "/donor/getPosts", tokenA, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.array(t), 1)
}

func TestNearbyPosts_MissingRadius(t *testing.T) {
	router := setupServer(t)

	res := nearby(router, url.Values{"longitude": {"77.6340"}, "latitude": {"12.9290"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, map[string]any{"error": "Latitude, longitude, and radius are required"}, res.object(t))
}

func TestDonorRoutes_AuthAndRole(t *testing.T) {
	router := setupServer(t)
	consumer := register(t, router, "Carol", "carol@x.com", "consumer")

	res := do(router, http.MethodGet, "/donor/getPosts", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, map[string]any{"error": "Authorization token is required"}, res.object(t))

	res = do(router, http.MethodGet, "/donor/getPosts", "not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, map[string]any{"error": "Please authenticate"}, res.object(t))

	res = do(router, http.MethodGet, "/donor/getPosts", consumer, "", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	router := setupServer(t)
	token := register(t, router, "Alice", "alice@x.com", "donor")

	res := do(router, http.MethodPost, "/auth/logout", token, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, map[string]any{"message": "Successfully logged out"}, res.object(t))

	res = do(router, http.MethodGet, "/donor/getPosts", token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestDeletePost_Concurrent(t *testing.T) {
	router := setupServer(t)
	token := register(t, router, "Alice", "alice@x.com", "donor")
	res := createPost(t, router, token, "Soup", 77.6335, 12.9292)
	require.Equal(t, http.StatusCreated, res.Code)
	id := res.object(t)["id"].(string)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(router, http.MethodDelete, "/donor/deletePost/"+id, token, "", nil).Code
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusNotFound}, codes)

	res = nearby(router, url.Values{"longitude": {"77.6335"}, "latitude": {"12.9292"}, "radius": {"5"}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, res.array(t))
}

func TestPlatformRoutes(t *testing.T) {
	router := setupServer(t)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/healthz", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/readyz", "", "", nil).Code)

	doc := do(router, http.MethodGet, "/api-docs/openapi.yaml", "", "", nil)
	assert.Equal(t, http.StatusOK, doc.Code)
	assert.Contains(t, string(doc.Body), "openapi:")

	// a request first so the route counters exist
	do(router, http.MethodGet, "/healthz", "", "", nil)
	m := do(router, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, string(m.Body), "foodshare_http_requests_total")
}
