// Package api holds the request and response bodies of the HTTP API and its OpenAPI document.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Defines values for Role.
const (
	RoleConsumer Role = "consumer"
	RoleDonor    Role = "donor"
)

// Role is the kind of account.
type Role string

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse defines model for MessageResponse.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest defines model for RegisterRequest.
type RegisterRequest struct {
	Name     string              `json:"name" binding:"required,max=100"`
	Email    openapi_types.Email `json:"email" binding:"required,email"`
	Password string              `json:"password" binding:"required,min=8,max=72"`
	Role     Role                `json:"role" binding:"required,oneof=donor consumer"`
}

// LoginRequest defines model for LoginRequest.
type LoginRequest struct {
	Email    openapi_types.Email `json:"email" binding:"required,email"`
	Password string              `json:"password" binding:"required"`
}

// User defines model for User.
type User struct {
	ID        uint                `json:"id"`
	Name      string              `json:"name"`
	Email     openapi_types.Email `json:"email"`
	Role      Role                `json:"role"`
	CreatedAt time.Time           `json:"createdAt"`
}

// AuthResponse defines model for AuthResponse.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// GeoPoint is a GeoJSON point; Coordinates is [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point.
func NewGeoPoint(longitude, latitude float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{longitude, latitude}}
}

// Post defines model for Post.
type Post struct {
	ID          string    `json:"id"`
	Donor       uint      `json:"donor"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Labels      []string  `json:"labels,omitempty"`
	Location    GeoPoint  `json:"location"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DonorSummary defines model for DonorSummary.
type DonorSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// NearbyPost defines model for NearbyPost.
type NearbyPost struct {
	ID          string       `json:"id"`
	Donor       DonorSummary `json:"donor"`
	Description string       `json:"description"`
	ImageURL    string       `json:"imageUrl"`
	Labels      []string     `json:"labels,omitempty"`
	Location    GeoPoint     `json:"location"`
	CreatedAt   time.Time    `json:"createdAt"`
	DistanceKm  float64      `json:"distanceKm"`
}

// CreatePostForm defines the multipart fields of POST /donor/createPost. The image travels as the "image" file part.
type CreatePostForm struct {
	Description string   `form:"description" binding:"required"`
	Latitude    *float64 `form:"latitude" binding:"required"`
	Longitude   *float64 `form:"longitude" binding:"required"`
}

// EditPostRequest defines model for EditPostRequest. It binds from JSON or form bodies.
type EditPostRequest struct {
	Description string   `json:"description" form:"description" binding:"required"`
	Latitude    *float64 `json:"latitude" form:"latitude" binding:"required"`
	Longitude   *float64 `json:"longitude" form:"longitude" binding:"required"`
}
