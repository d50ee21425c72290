package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/dom/anime-music-garden/internal/anime"
	"github.com/go-chi/chi/v5"
)

// AnimeLookup is the read-only anime catalogue behind /anime.
type AnimeLookup interface {
	Search(ctx context.Context, query string) ([]anime.Anime, error)
	GetByID(ctx context.Context, id int) (*anime.Anime, error)
	Characters(ctx context.Context, id int) ([]anime.Character, error)
	Soundtrack(ctx context.Context, id int) []anime.Soundtrack
}

type AnimeHandler struct {
	lookup AnimeLookup
}

func NewAnimeHandler(lookup AnimeLookup) *AnimeHandler {
	return &AnimeHandler{lookup: lookup}
}

func (h *AnimeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "Query parameter is required")
		return
	}

	results, err := h.lookup.Search(r.Context(), query)
	if err != nil {
		log.Printf("ERROR [handlers.SearchAnime] q=%q: %v", query, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to search anime")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *AnimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAnimeID(w, r)
	if !ok {
		return
	}

	a, err := h.lookup.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, "handlers.GetAnime", id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"anime": a})
}

func (h *AnimeHandler) Characters(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAnimeID(w, r)
	if !ok {
		return
	}

	characters, err := h.lookup.Characters(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, "handlers.GetAnimeCharacters", id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"characters": characters})
}

// Soundtrack never fails; provider problems produce an empty list.
func (h *AnimeHandler) Soundtrack(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAnimeID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"soundtracks": h.lookup.Soundtrack(r.Context(), id),
	})
}

func (h *AnimeHandler) writeLookupError(w http.ResponseWriter, op string, id int, err error) {
	if errors.Is(err, anime.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Anime not found")
		return
	}
	log.Printf("ERROR [%s] id=%d: %v", op, id, err)
	writeMessage(w, http.StatusInternalServerError, "Failed to get anime details")
}

func parseAnimeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid anime ID")
		return 0, false
	}
	return id, true
}
