package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/markdave123-py/contexta-graph/internal/services"
)

type ctxKey struct{}

// TokenParser validates a bearer token and returns its claims.
type TokenParser interface {
	ParseToken(raw string) (*services.Claims, error)
}

// JWTMiddleware validates the Authorization header and attaches the claims to
// the request context.
func JWTMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				deny(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}

			claims, err := parser.ParseToken(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly must run after JWTMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		if !claims.Admin {
			deny(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFrom(ctx context.Context) (*services.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*services.Claims)
	return c, ok && c != nil
}

// WithClaims returns ctx carrying claims. Used by handler tests.
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

func deny(w http.ResponseWriter, status int, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
