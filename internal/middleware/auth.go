package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/xelth-com/eckplanogram/internal/utils"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// Identity is the caller extracted from a valid token
type Identity struct {
	TenantID string
	Subject  string
}

// NewAuthMiddleware verifies JWT tokens and scopes the request to the token's tenant.
// The token is read from the Authorization header, or from the "token" query
// parameter for websocket upgrades where browsers cannot set headers.
func NewAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(tokenString, secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			tenantID, _ := claims["tenant_id"].(string)
			if tenantID == "" {
				http.Error(w, "Token has no tenant", http.StatusForbidden)
				return
			}
			subject, _ := claims["sub"].(string)

			ctx := context.WithValue(r.Context(), IdentityContextKey, Identity{TenantID: tenantID, Subject: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
		return "", false
	}

	// Bearer token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// IdentityFromContext returns the caller set by the auth middleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}
