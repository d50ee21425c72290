package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	Message      string       `json:"message"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
}

// UserResponse is the public view of an account. Password hashes and refresh
// tokens never leave the server.
type UserResponse struct {
	ID        uuid.UUID      `json:"id"`
	Username  string         `json:"username"`
	Role      domain.Role    `json:"role"`
	Garden    *domain.Garden `json:"garden,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newUserResponse(user *domain.User, garden *domain.Garden) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		Garden:    garden,
		CreatedAt: user.CreatedAt,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.Register", err)
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, "handlers.Register", err)
		return
	}

	h.writeAuthResult(w, r, http.StatusCreated, "User registered successfully", result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.Login", err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, "handlers.Login", err)
		return
	}

	h.writeAuthResult(w, r, http.StatusOK, "Login successful", result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.Refresh", err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, "handlers.Refresh", err)
		return
	}

	h.writeAuthResult(w, r, http.StatusOK, "Token refreshed successfully", result)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	garden, err := h.userService.Garden(r.Context(), user)
	if err != nil {
		respondError(w, "handlers.Me", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": newUserResponse(user, &garden),
	})
}

// Logout always succeeds. The body may carry the refresh token to revoke.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req RefreshRequest
	_ = decodeJSON(r, &req)

	if err := h.authService.Logout(r.Context(), userID, req.RefreshToken); err != nil {
		log.Printf("ERROR [handlers.Logout] user=%s: %v", userID, err)
	}

	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) writeAuthResult(w http.ResponseWriter, r *http.Request, status int, message string, result *service.AuthResult) {
	garden, err := h.userService.Garden(r.Context(), result.User)
	if err != nil {
		respondError(w, "handlers.writeAuthResult", err)
		return
	}

	writeJSON(w, status, AuthResponse{
		Message:      message,
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         newUserResponse(result.User, &garden),
	})
}
