package auth

import (
	"net/http"
	"time"
)

// CookiePolicy controls how session cookies are written. Both token cookies
// are HTTP-only and SameSite=Strict; only the Secure flag is environment
// dependent.
type CookiePolicy struct {
	AccessName  string
	RefreshName string
	Secure      bool
}

func (p CookiePolicy) SetSession(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, p.sessionCookie(p.AccessName, pair.AccessToken, pair.AccessClaims.ExpiresAt))
	http.SetCookie(w, p.sessionCookie(p.RefreshName, pair.RefreshToken, pair.RefreshClaims.ExpiresAt))
}

func (p CookiePolicy) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, p.expiredCookie(p.AccessName))
	http.SetCookie(w, p.expiredCookie(p.RefreshName))
}

func (p CookiePolicy) sessionCookie(name, value string, expiresAt time.Time) *http.Cookie {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (p CookiePolicy) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
