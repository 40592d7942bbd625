// Package usecase implements the business logic for the posts feature.
package usecase

import "errors"

var (
	// ErrPostNotFound is returned when a post does not exist or belongs to another donor.
	// The two cases are deliberately indistinguishable to callers.
	ErrPostNotFound = errors.New("post not found or unauthorized")

	// ErrInvalidPost is returned when a post fails validation before reaching the store.
	ErrInvalidPost = errors.New("invalid post")

	// ErrInvalidImage is returned when an upload is missing, empty, too large or not an image.
	ErrInvalidImage = errors.New("invalid image")
)
