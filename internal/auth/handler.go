package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	cookies CookiePolicy
}

func NewHandler(service *Service, cookies CookiePolicy) *Handler {
	return &Handler{service: service, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Message string `json:"message"`
	JTI     string `json:"jti"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	// A browser already holding a live session must log out first.
	if cookie, err := r.Cookie(h.cookies.AccessName); err == nil && cookie.Value != "" {
		if _, err := h.service.VerifyToken(cookie.Value); err == nil {
			writeError(w, http.StatusUnauthorized, "already authenticated")
			return
		}
	}

	pair, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		var locked ErrLoginLocked
		if errors.As(err, &locked) {
			retryAfter := int(time.Until(locked.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many failed login attempts")
			return
		}

		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.cookies.SetSession(w, pair)
	writeJSON(w, http.StatusOK, tokenResponse{
		Message: "Login successful.",
		JTI:     pair.AccessClaims.TokenID,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookies.RefreshName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	pair, err := h.service.Rotate(r.Context(), cookie.Value)
	if err != nil {
		// Reuse, expiry and unknown-subject all collapse to one client
		// message; the distinction lives in the server-side audit log.
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenReused) || errors.Is(err, ErrIdentityNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.cookies.SetSession(w, pair)
	writeJSON(w, http.StatusOK, tokenResponse{
		Message: "Tokens refreshed successfully.",
		JTI:     pair.AccessClaims.TokenID,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	// The identity gate only passes on a validated access cookie, so there is
	// always at least one token to revoke here.
	accessToken := cookieValue(r, h.cookies.AccessName)
	refreshToken := cookieValue(r, h.cookies.RefreshName)

	if err := h.service.Logout(r.Context(), identity.ID, accessToken, refreshToken); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully."})
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
