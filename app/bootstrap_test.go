package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinema-reservation/internal/auth"
)

func wiredCSRFGuard() *auth.CSRFGuard {
	return auth.NewCSRFGuard(auth.CSRFConfig{ExemptPaths: csrfExemptPaths})
}

func TestMaintenanceSweepExemptFromCSRF(t *testing.T) {
	invoked := false
	handler := wiredCSRFGuard().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
		w.WriteHeader(http.StatusOK)
	}))

	// A cron client carries a bearer secret and no cookies.
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, invoked, "sweep request must reach the handler")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNonExemptPostStillRequiresCSRFToken(t *testing.T) {
	invoked := false
	handler := wiredCSRFGuard().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/showtimes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, invoked)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
