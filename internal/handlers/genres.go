package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/adventure-engine/internal/storage"
)

type GenresResponse struct {
	Genres []string `json:"genres"`
}

type GenresHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewGenresHandler(storage storage.Storage, logger *slog.Logger) *GenresHandler {
	return &GenresHandler{storage: storage, logger: logger}
}

// ServeHTTP handles GET /v1/genres
func (h *GenresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	genres, err := h.storage.ListGenres(r.Context())
	if err != nil {
		h.logger.Error("Failed to list genres", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list genres")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, GenresResponse{Genres: genres})
}
