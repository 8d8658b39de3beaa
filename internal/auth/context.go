// Package auth carries the resolved identity of a request through its
// context. Identity is established once by the middleware, which maps the
// forwarded-user header to a household member; handlers read it from here.
package auth

import "context"

type contextKey struct{}

// AuthContext is the identity attached to an authenticated request.
type AuthContext struct {
	UserID      int64
	HouseholdID int64
	Role        string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// HouseholdID returns the household of the authenticated user, or 0 if the
// context carries no identity.
func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseholdID
}

// UserID returns the authenticated user's id, or 0 if the context carries
// no identity.
func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// IsAdmin reports whether the authenticated user has the admin role.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "admin"
}
