// Package entity defines the domain entities for the posts feature.
package entity

import (
	"time"

	"foodshare_backend/internal/platform/geo"
)

// Post is a food donation published by a donor.
type Post struct {
	// ID is assigned by the post store on creation.
	ID string

	// DonorID references the user who created the post. It never changes after creation.
	DonorID uint

	Description string

	// ImageURL is the public path of the uploaded image.
	ImageURL string

	// Labels are optional image labels detected at upload time.
	Labels []string

	Location geo.Point

	CreatedAt time.Time
}

// PostUpdate holds the fields a donor may change on an existing post.
type PostUpdate struct {
	Description string
	Location    geo.Point
}

// NearbyPost is a post returned by a proximity query.
type NearbyPost struct {
	Post
	DonorName  string
	DistanceKm float64
}
