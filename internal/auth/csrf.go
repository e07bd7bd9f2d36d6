package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	defaultCSRFCookieName = "csrf_token"
	defaultCSRFHeaderName = "X-CSRF-Token"
	defaultCSRFCookieTTL  = 15 * time.Minute
	csrfTokenBytes        = 32
)

type CSRFConfig struct {
	CookieName   string
	HeaderName   string
	CookieMaxAge time.Duration
	// SafeMethods are never checked. Defaults to the read-only methods.
	SafeMethods []string
	// ExemptPaths skip the check regardless of method (login, register,
	// refresh, logout and the like, which cannot carry a token yet).
	ExemptPaths []string
	Secure      bool
}

// CSRFGuard enforces the double-submit cookie pattern: unsafe requests must
// echo the CSRF cookie value in a header, which cross-site attackers cannot
// read. The token is random and compared, never stored server-side.
type CSRFGuard struct {
	cookieName string
	headerName string
	maxAge     time.Duration
	safe       map[string]struct{}
	exempt     map[string]struct{}
	secure     bool
}

func NewCSRFGuard(cfg CSRFConfig) *CSRFGuard {
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = defaultCSRFHeaderName
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = defaultCSRFCookieTTL
	}
	if len(cfg.SafeMethods) == 0 {
		cfg.SafeMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	}

	safe := make(map[string]struct{}, len(cfg.SafeMethods))
	for _, method := range cfg.SafeMethods {
		safe[method] = struct{}{}
	}
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, path := range cfg.ExemptPaths {
		exempt[path] = struct{}{}
	}

	return &CSRFGuard{
		cookieName: cfg.CookieName,
		headerName: cfg.HeaderName,
		maxAge:     cfg.CookieMaxAge,
		safe:       safe,
		exempt:     exempt,
		secure:     cfg.Secure,
	}
}

func (g *CSRFGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, cookieErr := r.Cookie(g.cookieName)

		if !g.isSafe(r.Method) && !g.isExempt(r.URL.Path) {
			header := r.Header.Get(g.headerName)
			if cookieErr != nil || cookie.Value == "" || header == "" ||
				subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				writeError(w, http.StatusForbidden, "CSRF validation failed")
				return
			}
		}

		// Requests arriving without a CSRF cookie get a fresh token on the
		// response. Not HTTP-only: the client must be able to read it back
		// into the header.
		if cookieErr != nil {
			if token, err := randomToken(csrfTokenBytes); err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     g.cookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(g.maxAge.Seconds()),
					HttpOnly: false,
					Secure:   g.secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (g *CSRFGuard) isSafe(method string) bool {
	_, ok := g.safe[method]
	return ok
}

func (g *CSRFGuard) isExempt(path string) bool {
	_, ok := g.exempt[path]
	return ok
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
