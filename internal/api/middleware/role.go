package middleware

import (
	"net/http"

	"github.com/dom/anime-music-garden/internal/domain"
)

// RequireRole admits a request when the authenticated user holds any of roles.
// It must run after Auth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Access denied. Insufficient permissions.")
		})
	}
}
