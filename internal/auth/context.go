// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithClaims/ClaimsFromContext for propagating session claims via context

package auth

import (
	"context"
)

// claimsContextKey is the key type for storing Claims in context.Context.
type claimsContextKey struct{}

// WithClaims returns a new context with the verified claims attached.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the claims from the context, returning nil if not present.
func ClaimsFromContext(ctx context.Context) *Claims {
	val := ctx.Value(claimsContextKey{})
	if val == nil {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// MustClaimsFromContext retrieves the claims from the context, panicking if not present.
// Only for handlers mounted behind Gate.
func MustClaimsFromContext(ctx context.Context) *Claims {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		panic("auth: Claims not found in context")
	}
	return claims
}
