package showtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func postCreate(body string) *httptest.ResponseRecorder {
	handler := NewHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/showtimes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	return rec
}

func TestCreateRejectsInvalidJSON(t *testing.T) {
	rec := postCreate(`{"movie_title"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	rec := postCreate(`{"movie_title":" ","starts_at":"2026-09-01T20:00:00Z","screen":1,"price_cents":1200}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsBadTimestamp(t *testing.T) {
	rec := postCreate(`{"movie_title":"Alien","starts_at":"tomorrow evening","screen":1,"price_cents":1200}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsNonPositiveScreen(t *testing.T) {
	rec := postCreate(`{"movie_title":"Alien","starts_at":"2026-09-01T20:00:00Z","screen":0,"price_cents":1200}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRejectsMalformedID(t *testing.T) {
	handler := NewHandler(nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/showtimes/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
