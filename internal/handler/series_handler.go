package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/repository"
)

// SeriesHandler serves archived series records from postgres.
type SeriesHandler struct {
	repo repository.SeriesRepository
}

// NewSeriesHandler creates a SeriesHandler.
func NewSeriesHandler(repo repository.SeriesRepository) *SeriesHandler {
	return &SeriesHandler{repo: repo}
}

// List handles GET /api/series.
func (h *SeriesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	series, err := h.repo.ListSeries(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list series")
		writeError(w, http.StatusInternalServerError, "failed to list series")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

// Get handles GET /api/series/{id}.
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	series, err := h.repo.GetSeries(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("seriesId", id).Msg("Failed to get series")
		writeError(w, http.StatusInternalServerError, "failed to get series")
		return
	}
	if series == nil {
		writeError(w, http.StatusNotFound, "series not found")
		return
	}
	writeJSON(w, http.StatusOK, series)
}
