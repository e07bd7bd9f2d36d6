package showtime

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type showtimeRequest struct {
	MovieTitle string `json:"movie_title"`
	StartsAt   string `json:"starts_at"`
	Screen     int    `json:"screen"`
	PriceCents int64  `json:"price_cents"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	showtimes, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list showtimes")
		return
	}

	writeJSON(w, http.StatusOK, showtimes)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body showtimeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.MovieTitle = strings.TrimSpace(body.MovieTitle)
	if body.MovieTitle == "" || len(body.MovieTitle) > 200 {
		writeError(w, http.StatusBadRequest, "movie title is invalid")
		return
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "starts_at must be RFC3339")
		return
	}
	if body.Screen <= 0 || body.PriceCents < 0 {
		writeError(w, http.StatusBadRequest, "screen or price is invalid")
		return
	}

	s, err := h.repo.Create(r.Context(), ShowtimeInput{
		MovieTitle: body.MovieTitle,
		StartsAt:   startsAt.UTC(),
		Screen:     body.Screen,
		PriceCents: body.PriceCents,
	})
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create showtime")
		return
	}

	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid showtime id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "showtime not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete showtime")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
