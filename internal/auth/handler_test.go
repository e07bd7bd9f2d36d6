package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinema-reservation/internal/observability"
)

type authTestServer struct {
	handler http.Handler
	service *Service
	store   *memoryStore
	cookies CookiePolicy
}

func newAuthTestServer(t *testing.T) *authTestServer {
	t.Helper()

	store := newMemoryStore()
	store.addIdentity("identity-1", "ana@example.com", "correct horse", RoleUser)

	service := newTestService(store)
	cookies := CookiePolicy{AccessName: "access_token", RefreshName: "refresh_token"}
	handler := NewHandler(service, cookies)
	resolver := NewSessionResolver(service.codec, store, store, cookies.AccessName, observability.NewLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", handler.Login)
	mux.HandleFunc("POST /api/v1/token/refresh", handler.Refresh)
	mux.Handle("POST /api/v1/logout", RequireIdentity(http.HandlerFunc(handler.Logout)))
	mux.Handle("GET /api/v1/profile", RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	return &authTestServer{
		handler: resolver.Middleware(mux),
		service: service,
		store:   store,
		cookies: cookies,
	}
}

func (s *authTestServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

func decodeTokenResponse(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginEndpointSetsCookiesAndJTI(t *testing.T) {
	server := newAuthTestServer(t)

	rec := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieFrom(t, rec, "access_token")
	refresh := cookieFrom(t, rec, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	body := decodeTokenResponse(t, rec)
	claims, err := server.service.VerifyToken(access.Value)
	require.NoError(t, err)
	assert.Equal(t, "identity-1", claims.Subject)
	assert.Equal(t, claims.TokenID, body.JTI)
}

func TestLoginEndpointRejectsBadPassword(t *testing.T) {
	server := newAuthTestServer(t)

	rec := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginEndpointRejectsWhenAlreadyAuthenticated(t *testing.T) {
	server := newAuthTestServer(t)

	first := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, first.Code)
	access := cookieFrom(t, first, "access_token")

	second := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`, access)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestLoginEndpointLockout(t *testing.T) {
	server := newAuthTestServer(t)

	for range lockoutThreshold {
		rec := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRefreshEndpointRotatesOnce(t *testing.T) {
	server := newAuthTestServer(t)

	login := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, login.Code)
	oldRefresh := cookieFrom(t, login, "refresh_token")
	require.NotNil(t, oldRefresh)

	first := server.do(http.MethodPost, "/api/v1/token/refresh", "", oldRefresh)
	require.Equal(t, http.StatusOK, first.Code)
	require.NotNil(t, cookieFrom(t, first, "access_token"))
	require.NotNil(t, cookieFrom(t, first, "refresh_token"))
	assert.NotEmpty(t, decodeTokenResponse(t, first).JTI)

	// Replaying the rotated-out refresh cookie is the replay attack.
	second := server.do(http.MethodPost, "/api/v1/token/refresh", "", oldRefresh)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestRefreshEndpointWithoutCookie(t *testing.T) {
	server := newAuthTestServer(t)

	rec := server.do(http.MethodPost, "/api/v1/token/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutThenReplayAccessToken(t *testing.T) {
	server := newAuthTestServer(t)

	login := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, login.Code)
	access := cookieFrom(t, login, "access_token")
	refresh := cookieFrom(t, login, "refresh_token")

	before := server.do(http.MethodGet, "/api/v1/profile", "", access)
	require.Equal(t, http.StatusOK, before.Code)

	logout := server.do(http.MethodPost, "/api/v1/logout", "", access, refresh)
	require.Equal(t, http.StatusOK, logout.Code)

	// The old access token is signed and unexpired, but its jti is revoked.
	after := server.do(http.MethodGet, "/api/v1/profile", "", access)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestLogoutWithAccessCookieOnly(t *testing.T) {
	server := newAuthTestServer(t)

	login := server.do(http.MethodPost, "/api/v1/login", `{"email":"ana@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, login.Code)
	access := cookieFrom(t, login, "access_token")

	// A client may have dropped the refresh cookie; the access token still
	// gets revoked.
	logout := server.do(http.MethodPost, "/api/v1/logout", "", access)
	require.Equal(t, http.StatusOK, logout.Code)
	assert.Contains(t, logout.Body.String(), "Logged out successfully.")

	after := server.do(http.MethodGet, "/api/v1/profile", "", access)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestLogoutRequiresSession(t *testing.T) {
	server := newAuthTestServer(t)

	rec := server.do(http.MethodPost, "/api/v1/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
