package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	UserKey   contextKey = "user"
)

const (
	msgNoToken      = "No token provided, authorization denied"
	msgTokenInvalid = "Token is not valid"
	msgTokenExpired = "Token expired"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, msgNoToken)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				status, message := AuthFailure(err)
				if status == http.StatusInternalServerError {
					log.Printf("ERROR [middleware.Auth] authentication failed: %v", err)
				}
				writeError(w, status, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthFailure maps an Authenticate error to the response status and message.
// The WebSocket handshake shares it so both paths answer identically.
func AuthFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, msgTokenExpired
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized, msgTokenInvalid
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok && user != nil
}

// WithUser returns a context carrying user as the authenticated identity.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	ctx = context.WithValue(ctx, UserKey, user)
	return context.WithValue(ctx, UserIDKey, user.ID)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
