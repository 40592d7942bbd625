package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/platform/geo"
)

const (
	// DefaultMaxImageSize is the upload limit used when none is configured (10MB).
	DefaultMaxImageSize = 10 * 1024 * 1024

	// MaxDescriptionLength bounds the description in runes.
	MaxDescriptionLength = 2000
)

// allowedImageTypes are the MIME types accepted for post images.
var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// PostRepository abstracts the persistence layer for posts.
type PostRepository interface {
	// Create persists a new post and assigns its ID.
	Create(ctx context.Context, post *entity.Post) error

	// FindByDonor returns every post created by donorID, newest first.
	FindByDonor(ctx context.Context, donorID uint) ([]entity.Post, error)

	// FindWithin returns every post whose location lies within radiusKm of center.
	FindWithin(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.Post, error)

	// UpdateOwned applies upd to the post only if it belongs to donorID, in one atomic step.
	// It returns ErrPostNotFound when no such post exists.
	UpdateOwned(ctx context.Context, id string, donorID uint, upd entity.PostUpdate) (*entity.Post, error)

	// DeleteOwned removes the post only if it belongs to donorID, in one atomic step,
	// and returns the removed post. It returns ErrPostNotFound when no such post exists.
	DeleteOwned(ctx context.Context, id string, donorID uint) (*entity.Post, error)
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Delete(ctx context.Context, url string) error
}

// ImageLabeler detects descriptive labels in an image.
type ImageLabeler interface {
	Labels(ctx context.Context, data []byte) ([]string, error)
}

// DonorDirectory resolves donor display names.
type DonorDirectory interface {
	NamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error)
}

// CreatePostInput carries everything needed to publish a post.
type CreatePostInput struct {
	DonorID     uint
	Description string
	Location    geo.Point
	Image       []byte
}

// postUsecase implements the post business logic.
type postUsecase struct {
	posts        PostRepository
	images       ImageStore
	labeler      ImageLabeler
	donors       DonorDirectory
	maxImageSize int
	now          func() time.Time
}

// NewPostUsecase creates a postUsecase. labeler may be nil to skip image labeling.
func NewPostUsecase(posts PostRepository, images ImageStore, labeler ImageLabeler, donors DonorDirectory, maxImageSize int) *postUsecase {
	if maxImageSize <= 0 {
		maxImageSize = DefaultMaxImageSize
	}
	return &postUsecase{
		posts:        posts,
		images:       images,
		labeler:      labeler,
		donors:       donors,
		maxImageSize: maxImageSize,
		now:          time.Now,
	}
}

// validateContent checks the fields a donor controls on create and edit.
func validateContent(description string, location geo.Point) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidPost)
	}
	if len([]rune(description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidPost, MaxDescriptionLength)
	}
	if err := location.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPost, err)
	}
	return nil
}

// imageExtension validates the upload and returns the file extension for its detected type.
func (u *postUsecase) imageExtension(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrInvalidImage)
	}
	if len(data) > u.maxImageSize {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, u.maxImageSize)
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return mt.Extension(), nil
		}
	}
	return "", fmt.Errorf("%w: unsupported type %s", ErrInvalidImage, mt.String())
}

// CreatePost stores the image and publishes a new post owned by in.DonorID.
func (u *postUsecase) CreatePost(ctx context.Context, in CreatePostInput) (*entity.Post, error) {
	description := strings.TrimSpace(in.Description)
	if err := validateContent(description, in.Location); err != nil {
		return nil, err
	}
	ext, err := u.imageExtension(in.Image)
	if err != nil {
		return nil, err
	}

	url, err := u.images.Save(ctx, in.Image, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	var labels []string
	if u.labeler != nil {
		// labels are decoration; a failing labeler never blocks a donation
		if labels, err = u.labeler.Labels(ctx, in.Image); err != nil {
			slog.Warn("image labeling failed", "error", err, "donor_id", in.DonorID)
			labels = nil
		}
	}

	post := &entity.Post{
		DonorID:     in.DonorID,
		Description: description,
		ImageURL:    url,
		Labels:      labels,
		Location:    in.Location,
		CreatedAt:   u.now().UTC(),
	}
	if err := u.posts.Create(ctx, post); err != nil {
		if delErr := u.images.Delete(ctx, url); delErr != nil {
			slog.Warn("failed to remove orphaned image", "error", delErr, "url", url)
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// ListDonorPosts returns the posts created by donorID.
func (u *postUsecase) ListDonorPosts(ctx context.Context, donorID uint) ([]entity.Post, error) {
	return u.posts.FindByDonor(ctx, donorID)
}

// EditPost changes the description and location of a post owned by donorID.
func (u *postUsecase) EditPost(ctx context.Context, donorID uint, postID string, upd entity.PostUpdate) (*entity.Post, error) {
	upd.Description = strings.TrimSpace(upd.Description)
	if err := validateContent(upd.Description, upd.Location); err != nil {
		return nil, err
	}
	return u.posts.UpdateOwned(ctx, postID, donorID, upd)
}

// DeletePost removes a post owned by donorID and its stored image.
func (u *postUsecase) DeletePost(ctx context.Context, donorID uint, postID string) error {
	post, err := u.posts.DeleteOwned(ctx, postID, donorID)
	if err != nil {
		return err
	}
	if err := u.images.Delete(ctx, post.ImageURL); err != nil {
		slog.Warn("failed to remove image of deleted post", "error", err, "post_id", post.ID)
	}
	return nil
}

// NearbyPosts returns every post within radiusKm of center, closest first, with donor names resolved.
func (u *postUsecase) NearbyPosts(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.NearbyPost, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := geo.ValidateRadius(radiusKm); err != nil {
		return nil, err
	}

	posts, err := u.posts.FindWithin(ctx, center, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("radius query failed: %w", err)
	}

	out := make([]entity.NearbyPost, 0, len(posts))
	donorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	for _, p := range posts {
		d := geo.DistanceKm(center, p.Location)
		if d > radiusKm+geo.DistanceToleranceKm {
			continue
		}
		out = append(out, entity.NearbyPost{Post: p, DistanceKm: d})
		if _, ok := seen[p.DonorID]; !ok {
			seen[p.DonorID] = struct{}{}
			donorIDs = append(donorIDs, p.DonorID)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })

	if len(donorIDs) > 0 {
		names, err := u.donors.NamesByIDs(ctx, donorIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve donors: %w", err)
		}
		for i := range out {
			out[i].DonorName = names[out[i].DonorID]
		}
	}
	return out, nil
}
