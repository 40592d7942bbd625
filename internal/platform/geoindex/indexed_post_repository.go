package geoindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/feature/posts/usecase"
	"foodshare_backend/internal/platform/geo"
	"foodshare_backend/internal/platform/metrics"
)

// PostStore is the durable post store the index is kept consistent with.
type PostStore interface {
	usecase.PostRepository

	// FindByIDs returns the stored posts among ids; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]entity.Post, error)

	// All returns every stored post.
	All(ctx context.Context) ([]entity.Post, error)

	// DeleteAll removes every post and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
}

// IndexedPostRepository decorates a PostStore with a location index.
// Writes go to the store first and then to the index; radius queries read
// candidate IDs from the index and hydrate them from the store.
// If index is nil, every call goes straight to the store.
type IndexedPostRepository struct {
	inner PostStore
	index Index
}

var _ usecase.PostRepository = (*IndexedPostRepository)(nil)

// NewIndexedPostRepository decorates inner with index.
func NewIndexedPostRepository(inner PostStore, index Index) *IndexedPostRepository {
	return &IndexedPostRepository{inner: inner, index: index}
}

// Rebuild clears the index and loads every stored post into it.
func (r *IndexedPostRepository) Rebuild(ctx context.Context) (int, error) {
	if r.index == nil {
		return 0, nil
	}
	posts, err := r.inner.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load posts: %w", err)
	}
	if err := r.index.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear location index: %w", err)
	}

	n := 0
	for _, p := range posts {
		if err := r.index.Insert(ctx, p.ID, p.Location); err != nil {
			if errors.Is(err, geo.ErrInvalidPoint) {
				slog.Warn("post cannot be indexed", "post_id", p.ID, "error", err)
				continue
			}
			return n, fmt.Errorf("failed to index post %s: %w", p.ID, err)
		}
		n++
	}
	metrics.SetIndexSize(r.index.Backend(), n)
	return n, nil
}

// Create stores the post and then indexes it. A post that cannot be indexed is
// removed again so it never exists without being discoverable.
func (r *IndexedPostRepository) Create(ctx context.Context, post *entity.Post) error {
	if err := r.checkPoint(post.Location); err != nil {
		return err
	}
	if err := r.inner.Create(ctx, post); err != nil {
		return err
	}
	if r.index == nil {
		return nil
	}
	if err := r.index.Insert(ctx, post.ID, post.Location); err != nil {
		metrics.RecordIndexError(r.index.Backend(), "insert")
		if _, delErr := r.inner.DeleteOwned(ctx, post.ID, post.DonorID); delErr != nil {
			slog.Error("failed to roll back unindexed post", "post_id", post.ID, "error", delErr)
		}
		return indexWriteError(err)
	}
	return nil
}

// checkPoint rejects locations the index backend cannot hold before anything is written.
func (r *IndexedPostRepository) checkPoint(p geo.Point) error {
	if r.index == nil {
		return nil
	}
	if err := r.index.CheckPoint(p); err != nil {
		return fmt.Errorf("%w: %w", usecase.ErrInvalidPost, err)
	}
	return nil
}

func indexWriteError(err error) error {
	if errors.Is(err, geo.ErrInvalidPoint) {
		return fmt.Errorf("%w: %w", usecase.ErrInvalidPost, err)
	}
	return fmt.Errorf("failed to index post: %w", err)
}

// FindByDonor reads from the store.
func (r *IndexedPostRepository) FindByDonor(ctx context.Context, donorID uint) ([]entity.Post, error) {
	return r.inner.FindByDonor(ctx, donorID)
}

// FindWithin asks the index for candidates and hydrates them from the store.
// Index IDs whose post is gone are skipped. When the index fails the store's
// own radius query answers instead.
func (r *IndexedPostRepository) FindWithin(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.Post, error) {
	if r.index == nil {
		return r.inner.FindWithin(ctx, center, radiusKm)
	}

	start := time.Now()
	hits, err := r.index.QueryRadius(ctx, center, radiusKm)
	metrics.ObserveIndexQuery(r.index.Backend(), time.Since(start))
	if err != nil {
		metrics.RecordIndexError(r.index.Backend(), "query")
		slog.Warn("location index query failed; falling back to store", "backend", r.index.Backend(), "error", err)
		return r.inner.FindWithin(ctx, center, radiusKm)
	}
	if len(hits) == 0 {
		return []entity.Post{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.PostID
	}
	stored, err := r.inner.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]entity.Post, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}
	out := make([]entity.Post, 0, len(stored))
	for _, h := range hits {
		p, ok := byID[h.PostID]
		if !ok || !geo.Within(center, p.Location, radiusKm) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateOwned updates the store and moves the index entry. When the index
// cannot take the new location the stored post is restored to its previous
// content, so the post stays discoverable where the index still has it.
func (r *IndexedPostRepository) UpdateOwned(ctx context.Context, id string, donorID uint, upd entity.PostUpdate) (*entity.Post, error) {
	if r.index == nil {
		return r.inner.UpdateOwned(ctx, id, donorID, upd)
	}
	if err := r.checkPoint(upd.Location); err != nil {
		return nil, err
	}

	before, err := r.inner.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	post, err := r.inner.UpdateOwned(ctx, id, donorID, upd)
	if err != nil {
		return nil, err
	}
	if err := r.index.Insert(ctx, post.ID, post.Location); err != nil {
		metrics.RecordIndexError(r.index.Backend(), "update")
		r.restore(ctx, before, donorID)
		return nil, indexWriteError(err)
	}
	return post, nil
}

// restore writes the pre-update content back and puts its point in the index again.
func (r *IndexedPostRepository) restore(ctx context.Context, before []entity.Post, donorID uint) {
	if len(before) != 1 {
		return
	}
	prev := before[0]
	if _, err := r.inner.UpdateOwned(ctx, prev.ID, donorID, entity.PostUpdate{
		Description: prev.Description,
		Location:    prev.Location,
	}); err != nil {
		slog.Error("failed to restore post after index failure", "post_id", prev.ID, "error", err)
		return
	}
	if err := r.index.Insert(ctx, prev.ID, prev.Location); err != nil {
		slog.Warn("failed to reindex restored post", "post_id", prev.ID, "error", err)
	}
}

// DeleteOwned deletes from the store and then from the index. A stale index
// entry is harmless because queries hydrate from the store.
func (r *IndexedPostRepository) DeleteOwned(ctx context.Context, id string, donorID uint) (*entity.Post, error) {
	post, err := r.inner.DeleteOwned(ctx, id, donorID)
	if err != nil {
		return nil, err
	}
	if r.index == nil {
		return post, nil
	}
	if err := r.index.Remove(ctx, post.ID); err != nil {
		metrics.RecordIndexError(r.index.Backend(), "remove")
		slog.Warn("failed to remove post from location index", "post_id", post.ID, "error", err)
	}
	return post, nil
}

// DeleteAll empties the store and the index.
func (r *IndexedPostRepository) DeleteAll(ctx context.Context) (int64, error) {
	n, err := r.inner.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if r.index == nil {
		return n, nil
	}
	if err := r.index.Clear(ctx); err != nil {
		return n, fmt.Errorf("failed to clear location index: %w", err)
	}
	metrics.SetIndexSize(r.index.Backend(), 0)
	return n, nil
}
