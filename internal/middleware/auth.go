package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	OrganizationKey contextKey = "organization"
	APIKeyKey       contextKey = "api_key"
)

// public paths skip auth and rate limiting
func isPublic(path string) bool {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// APIKeyAuth validates API key from Authorization header. validKeys maps
// organization id to its key.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Extract API key from Authorization header
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimPrefix(auth, "Bearer ")
			apiKey = strings.TrimSpace(apiKey)

			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// Validate API key (constant-time comparison to prevent timing attacks)
			valid := false
			var org string
			for o, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					org = o
					break
				}
			}

			if !valid {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), OrganizationKey, org)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOrganizationFromContext extracts the authenticated organization
func GetOrganizationFromContext(ctx context.Context) string {
	if org, ok := ctx.Value(OrganizationKey).(string); ok {
		return org
	}
	return ""
}

// RequireOrganization ensures the {org} URL parameter matches the
// authenticated organization. Mount it inside the chi route that declares
// the parameter.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlOrg := chi.URLParam(r, "org")
		if err := ValidateOrganizationID(urlOrg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if authOrg := GetOrganizationFromContext(r.Context()); authOrg != urlOrg {
			writeError(w, http.StatusForbidden, "organization does not match API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
