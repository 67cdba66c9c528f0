package middleware

import (
	"context"
	"net/http"

	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/model"
)

type contextKey string

const identityKey contextKey = "api_key_identity"

// Authenticator resolves a raw API key to its key record.
// core.APIKeyService satisfies this interface.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error)
}

// Identity extracts the authenticated API key from the request context.
func Identity(ctx context.Context) *model.APIKey {
	key, _ := ctx.Value(identityKey).(*model.APIKey)
	return key
}

// Auth returns a middleware that validates the X-API-Key header.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			key, err := auth.Authenticate(r.Context(), rawKey)
			if err != nil {
				response.WriteError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if key == nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks the authenticated key carries
// at least the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Identity(r.Context())
			if key == nil || !model.RoleAllows(key.Role, role) {
				response.WriteError(w, http.StatusForbidden, "requires "+role+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CreatedBy returns the audit attribution string for the authenticated key.
func CreatedBy(ctx context.Context) string {
	if key := Identity(ctx); key != nil {
		return "key:" + key.Name
	}
	return "unknown"
}
