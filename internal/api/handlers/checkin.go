package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/go-chi/chi/v5"
)

type CheckInHandler struct {
	checkInService *service.CheckInService
}

func NewCheckInHandler(checkInService *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

// CreateCheckInRequest is the body of POST /checkins. flowerSize and
// position are computed server side and ignored if sent.
type CreateCheckInRequest struct {
	Type       domain.CheckInType `json:"type"`
	Title      string             `json:"title"`
	AnimeTitle string             `json:"animeTitle"`
	AnimeID    *int               `json:"animeId"`
	AnimeImage *string            `json:"animeImage"`
	Episode    *int               `json:"episode"`
	Rating     int                `json:"rating"`
	Emotion    domain.Emotion     `json:"emotion"`
	Notes      string             `json:"notes"`
	Date       *string            `json:"date"`
}

// UpdateCheckInRequest only changes the fields present in the body.
type UpdateCheckInRequest struct {
	Type       *domain.CheckInType `json:"type"`
	Title      *string             `json:"title"`
	AnimeTitle *string             `json:"animeTitle"`
	AnimeID    *int                `json:"animeId"`
	AnimeImage *string             `json:"animeImage"`
	Episode    *int                `json:"episode"`
	Rating     *int                `json:"rating"`
	Emotion    *domain.Emotion     `json:"emotion"`
	Notes      *string             `json:"notes"`
	Date       *string             `json:"date"`
}

type CheckInResponse struct {
	Message string          `json:"message,omitempty"`
	CheckIn *domain.CheckIn `json:"checkIn"`
}

type CheckInListResponse struct {
	CheckIns []*domain.CheckIn `json:"checkIns"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Skip     int               `json:"skip"`
}

func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateCheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.CreateCheckIn", err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, "handlers.CreateCheckIn", err)
		return
	}

	checkIn, err := h.checkInService.Create(r.Context(), userID, service.CreateCheckInInput{
		Type:       req.Type,
		Title:      req.Title,
		AnimeTitle: req.AnimeTitle,
		AnimeID:    req.AnimeID,
		AnimeImage: req.AnimeImage,
		Episode:    req.Episode,
		Rating:     req.Rating,
		Emotion:    req.Emotion,
		Notes:      req.Notes,
		Date:       date,
	})
	if err != nil {
		respondError(w, "handlers.CreateCheckIn", err)
		return
	}

	writeJSON(w, http.StatusCreated, CheckInResponse{
		Message: "Check-in created successfully",
		CheckIn: checkIn,
	})
}

func (h *CheckInHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	q := r.URL.Query()
	limit, err := parseIntParam(q.Get("limit"), "limit")
	if err != nil {
		respondError(w, "handlers.ListCheckIns", err)
		return
	}
	skip, err := parseIntParam(q.Get("skip"), "skip")
	if err != nil {
		respondError(w, "handlers.ListCheckIns", err)
		return
	}

	page, err := h.checkInService.List(r.Context(), userID, service.ListCheckInsQuery{
		Type:  q.Get("type"),
		Limit: limit,
		Skip:  skip,
	})
	if err != nil {
		respondError(w, "handlers.ListCheckIns", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckInListResponse{
		CheckIns: page.Items,
		Total:    page.Total,
		Limit:    page.Limit,
		Skip:     page.Skip,
	})
}

func (h *CheckInHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, "handlers.GetCheckIn", service.ErrCheckInNotFound)
		return
	}

	checkIn, err := h.checkInService.Get(r.Context(), userID, id)
	if err != nil {
		respondError(w, "handlers.GetCheckIn", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckInResponse{CheckIn: checkIn})
}

func (h *CheckInHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, "handlers.UpdateCheckIn", service.ErrCheckInNotFound)
		return
	}

	var req UpdateCheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "handlers.UpdateCheckIn", err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, "handlers.UpdateCheckIn", err)
		return
	}

	checkIn, err := h.checkInService.Update(r.Context(), userID, id, service.UpdateCheckInInput{
		Type:       req.Type,
		Title:      req.Title,
		AnimeTitle: req.AnimeTitle,
		AnimeID:    req.AnimeID,
		AnimeImage: req.AnimeImage,
		Episode:    req.Episode,
		Rating:     req.Rating,
		Emotion:    req.Emotion,
		Notes:      req.Notes,
		Date:       date,
	})
	if err != nil {
		respondError(w, "handlers.UpdateCheckIn", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckInResponse{
		Message: "Check-in updated successfully",
		CheckIn: checkIn,
	})
}

func (h *CheckInHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, "handlers.DeleteCheckIn", service.ErrCheckInNotFound)
		return
	}

	if err := h.checkInService.Delete(r.Context(), userID, id); err != nil {
		respondError(w, "handlers.DeleteCheckIn", err)
		return
	}

	writeMessage(w, http.StatusOK, "Check-in deleted successfully")
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.NewValidationError("Invalid date")
}

func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("Invalid " + name)
	}
	return n, nil
}
