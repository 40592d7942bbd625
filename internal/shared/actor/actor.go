// Package actor carries the authenticated caller through a request context.
package actor

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when a bearer token cannot be resolved to a live user session.
var ErrUnauthenticated = errors.New("unauthenticated")

// Actor is the caller resolved by the auth middleware.
type Actor struct {
	UserID    uint
	Name      string
	Email     string
	Role      string
	SessionID string
}

type contextKey struct{}

// WithActor returns a copy of ctx holding a.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(*Actor)
	return a, ok && a != nil
}
