// Package geoindex maintains a spatial index of post locations and answers radius queries.
package geoindex

import (
	"context"
	"sort"

	"foodshare_backend/internal/platform/geo"
)

// Hit is one indexed post returned by a radius query.
type Hit struct {
	PostID     string
	DistanceKm float64
}

// Index maps post IDs to locations.
// QueryRadius may return a small superset of the exact answer; callers re-check
// candidates against the stored coordinates.
type Index interface {
	// CheckPoint reports whether p can be stored, without touching the index.
	CheckPoint(p geo.Point) error

	// Insert adds or moves the entry for id. Inserting the same id twice keeps one entry.
	Insert(ctx context.Context, id string, p geo.Point) error

	// Remove drops the entry for id. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// QueryRadius returns the entries within radiusKm of center, closest first.
	QueryRadius(ctx context.Context, center geo.Point, radiusKm float64) ([]Hit, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Backend names the implementation for logs and metrics.
	Backend() string
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].PostID < hits[j].PostID
	})
}
