package handlers

import (
	"net/http"

	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type ProfileResponse struct {
	User    UserResponse           `json:"user"`
	Stats   service.ProfileStats   `json:"stats"`
	Flowers []domain.FlowerSummary `json:"flowers"`
}

// UpdateProfileRequest only exposes the username. Roles are not
// self-service.
type UpdateProfileRequest struct {
	Username *string `json:"username"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		respondError(w, "handlers.GetProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		User:    newUserResponse(profile.User, &profile.Garden),
		Stats:   profile.Stats,
		Flowers: profile.Flowers,
	})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.UpdateProfile", err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, service.UpdateProfileInput{
		Username: req.Username,
	})
	if err != nil {
		respondError(w, "handlers.UpdateProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    newUserResponse(user, nil),
	})
}

func (h *UserHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.AdminStats(r.Context())
	if err != nil {
		respondError(w, "handlers.AdminStats", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *UserHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondError(w, "handlers.AdminUsers", err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUserResponse(u, nil))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}
