package middleware

import (
	"context"
	"net/http"

	"github.com/devfedhq/devboard/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// SetClaims stores verified token claims in the context.
func SetClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the verified claims for the request, if any. A request
// without claims is a guest.
func GetClaims(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
	return claims, ok
}
