// Package handler provides the HTTP handlers of the posts feature.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foodshare_backend/internal/api"
	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/feature/posts/usecase"
	"foodshare_backend/internal/platform/geo"
	"foodshare_backend/internal/shared/actor"
)

const (
	msgCreateFailed   = "Failed to create post"
	msgEditFailed     = "Failed to edit post"
	msgServerError    = "Server error"
	msgNotFound       = "Post not found or unauthorized"
	msgDeleted        = "Post deleted successfully"
	msgNearbyRequired = "Latitude, longitude, and radius are required"
	msgNearbyInvalid  = "Latitude, longitude, and radius must be valid numbers"
	msgUnauthorized   = "Please authenticate"
)

// PostUsecase defines the post operations used by the HTTP layer.
type PostUsecase interface {
	CreatePost(ctx context.Context, in usecase.CreatePostInput) (*entity.Post, error)
	ListDonorPosts(ctx context.Context, donorID uint) ([]entity.Post, error)
	EditPost(ctx context.Context, donorID uint, postID string, upd entity.PostUpdate) (*entity.Post, error)
	DeletePost(ctx context.Context, donorID uint, postID string) error
	NearbyPosts(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.NearbyPost, error)
}

// PostHandler handles the donor and consumer post endpoints.
type PostHandler struct {
	posts        PostUsecase
	maxImageSize int64
}

// NewPostHandler creates a PostHandler. Uploaded images larger than maxImageSize bytes are rejected.
func NewPostHandler(posts PostUsecase, maxImageSize int64) *PostHandler {
	if maxImageSize <= 0 {
		maxImageSize = usecase.DefaultMaxImageSize
	}
	return &PostHandler{posts: posts, maxImageSize: maxImageSize}
}

// requireActor returns the authenticated caller or writes a 401.
func requireActor(c *gin.Context) (*actor.Actor, bool) {
	a, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: msgUnauthorized})
		return nil, false
	}
	return a, true
}

func isValidationError(err error) bool {
	return errors.Is(err, usecase.ErrInvalidPost) ||
		errors.Is(err, usecase.ErrInvalidImage) ||
		errors.Is(err, geo.ErrInvalidPoint) ||
		errors.Is(err, geo.ErrInvalidRadius)
}

// CreatePost handles POST /donor/createPost (multipart: description, latitude, longitude, image).
func (h *PostHandler) CreatePost(c *gin.Context) {
	donor, ok := requireActor(c)
	if !ok {
		return
	}

	var form api.CreatePostForm
	if err := c.ShouldBind(&form); err != nil {
		slog.Warn("create post validation failed", "error", err, "donor_id", donor.UserID)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgCreateFailed})
		return
	}
	image, err := h.readImage(c)
	if err != nil {
		slog.Warn("create post image rejected", "error", err, "donor_id", donor.UserID)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgCreateFailed})
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), usecase.CreatePostInput{
		DonorID:     donor.UserID,
		Description: form.Description,
		Location:    geo.Point{Longitude: *form.Longitude, Latitude: *form.Latitude},
		Image:       image,
	})
	if err != nil {
		if isValidationError(err) {
			slog.Warn("create post rejected", "error", err, "donor_id", donor.UserID)
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgCreateFailed})
			return
		}
		slog.Error("create post failed", "error", err, "donor_id", donor.UserID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	slog.Info("post created", "post_id", post.ID, "donor_id", donor.UserID)
	c.JSON(http.StatusCreated, toPostResponse(*post))
}

// readImage reads the "image" file part, refusing anything larger than the configured limit.
func (h *PostHandler) readImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("image is required: %w", err)
	}
	if fh.Size > h.maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", usecase.ErrInvalidImage, h.maxImageSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", usecase.ErrInvalidImage, h.maxImageSize)
	}
	return data, nil
}

// GetPosts handles GET /donor/getPosts.
func (h *PostHandler) GetPosts(c *gin.Context) {
	donor, ok := requireActor(c)
	if !ok {
		return
	}

	posts, err := h.posts.ListDonorPosts(c.Request.Context(), donor.UserID)
	if err != nil {
		slog.Error("list donor posts failed", "error", err, "donor_id", donor.UserID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	out := make([]api.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// EditPost handles PUT /donor/editPost/:id.
func (h *PostHandler) EditPost(c *gin.Context) {
	donor, ok := requireActor(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var req api.EditPostRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.Warn("edit post validation failed", "error", err, "post_id", postID)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgEditFailed})
		return
	}

	post, err := h.posts.EditPost(c.Request.Context(), donor.UserID, postID, entity.PostUpdate{
		Description: req.Description,
		Location:    geo.Point{Longitude: *req.Longitude, Latitude: *req.Latitude},
	})
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrPostNotFound):
		slog.Warn("edit post refused", "post_id", postID, "donor_id", donor.UserID)
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: msgNotFound})
		return
	case isValidationError(err):
		slog.Warn("edit post rejected", "error", err, "post_id", postID)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgEditFailed})
		return
	default:
		slog.Error("edit post failed", "error", err, "post_id", postID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	slog.Info("post edited", "post_id", postID, "donor_id", donor.UserID)
	c.JSON(http.StatusOK, toPostResponse(*post))
}

// DeletePost handles DELETE /donor/deletePost/:id.
func (h *PostHandler) DeletePost(c *gin.Context) {
	donor, ok := requireActor(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	if err := h.posts.DeletePost(c.Request.Context(), donor.UserID, postID); err != nil {
		if errors.Is(err, usecase.ErrPostNotFound) {
			slog.Warn("delete post refused", "post_id", postID, "donor_id", donor.UserID)
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: msgNotFound})
			return
		}
		slog.Error("delete post failed", "error", err, "post_id", postID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	slog.Info("post deleted", "post_id", postID, "donor_id", donor.UserID)
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgDeleted})
}

// NearbyPosts handles GET /consumer/nearbyPosts?latitude=&longitude=&radius= (radius in km).
func (h *PostHandler) NearbyPosts(c *gin.Context) {
	latRaw, lonRaw, radiusRaw := c.Query("latitude"), c.Query("longitude"), c.Query("radius")
	if latRaw == "" || lonRaw == "" || radiusRaw == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgNearbyRequired})
		return
	}

	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lon, lonErr := strconv.ParseFloat(lonRaw, 64)
	radius, radiusErr := strconv.ParseFloat(radiusRaw, 64)
	if err := errors.Join(latErr, lonErr, radiusErr); err != nil {
		slog.Warn("nearby query rejected", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgNearbyInvalid})
		return
	}

	posts, err := h.posts.NearbyPosts(c.Request.Context(), geo.Point{Longitude: lon, Latitude: lat}, radius)
	if err != nil {
		if isValidationError(err) {
			slog.Warn("nearby query rejected", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgNearbyInvalid})
			return
		}
		slog.Error("nearby query failed", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgServerError})
		return
	}

	out := make([]api.NearbyPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, api.NearbyPost{
			ID:          p.ID,
			Donor:       api.DonorSummary{ID: p.DonorID, Name: p.DonorName},
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Labels:      p.Labels,
			Location:    api.NewGeoPoint(p.Location.Longitude, p.Location.Latitude),
			CreatedAt:   p.CreatedAt,
			DistanceKm:  p.DistanceKm,
		})
	}
	c.JSON(http.StatusOK, out)
}

func toPostResponse(p entity.Post) api.Post {
	return api.Post{
		ID:          p.ID,
		Donor:       p.DonorID,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Labels:      p.Labels,
		Location:    api.NewGeoPoint(p.Location.Longitude, p.Location.Latitude),
		CreatedAt:   p.CreatedAt,
	}
}
