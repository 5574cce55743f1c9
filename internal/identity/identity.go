// Package identity supplies the stable caller identity the lease manager
// stamps into lease records. The session system that produces it is an
// external collaborator; this package only defines the contract plus the
// two providers the binaries need.
package identity

import (
	"context"
	"errors"
)

// Caller is the identity of the current user: a stable unique ID plus a
// display name captured for UI purposes.
type Caller struct {
	ID   string
	Name string
}

// ErrNoCaller signals that no identity is available for the current call.
var ErrNoCaller = errors.New("identity: no caller available")

// Provider resolves the caller identity for an operation.
type Provider interface {
	Caller(ctx context.Context) (Caller, error)
}

// Static always returns the same caller. Used by embedded (single-user)
// deployments and the load generator.
type Static struct {
	Identity Caller
}

func (s Static) Caller(context.Context) (Caller, error) {
	if s.Identity.ID == "" {
		return Caller{}, ErrNoCaller
	}
	return s.Identity, nil
}

type ctxKey struct{}

// WithCaller attaches a caller identity to the context. The HTTP layer
// does this per request after reading the identity headers.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext extracts a caller previously attached with WithCaller.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok && c.ID != ""
}

// ContextProvider resolves the caller from the request context.
type ContextProvider struct{}

func (ContextProvider) Caller(ctx context.Context) (Caller, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return Caller{}, ErrNoCaller
	}
	return c, nil
}
