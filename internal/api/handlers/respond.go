package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/google/uuid"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR [handlers.writeJSON] failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// respondError writes categorized errors with their own message. Anything
// else is logged under op and hidden behind a generic 500.
func respondError(w http.ResponseWriter, op string, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		writeMessage(w, statusFor(domainErr.Kind), domainErr.Message)
		return
	}

	log.Printf("ERROR [%s] %v", op, err)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func statusFor(kind error) int {
	switch kind {
	case domain.ErrValidation, domain.ErrConflict:
		return http.StatusBadRequest
	case domain.ErrAuth:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("Invalid request body")
	}
	return nil
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	return id, err == nil
}
