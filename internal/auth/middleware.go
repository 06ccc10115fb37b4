package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/utils"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// caller's claims in the request context.
func Middleware(v TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			claims, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through only callers holding role. Mount it after
// Middleware.
func RequireRole(role string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil || !claims.HasRole(role) {
				log.LogSecurity("ROLE_DENIED", fmt.Sprintf("%s lacks role %s for %s", UserID(r.Context()), role, r.URL.Path))
				utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("forbidden", "FORBIDDEN", ""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", "UNAUTHORIZED", detail))
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// WithUserID is a shortcut for callers that only know the subject.
func WithUserID(ctx context.Context, userID string) context.Context {
	return WithClaims(ctx, &Claims{Subject: userID})
}

func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.Subject
	}
	return ""
}
