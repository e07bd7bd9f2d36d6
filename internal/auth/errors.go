package auth

import (
	"errors"
	"time"
)

var (
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")

	// ErrTokenRejected is the single verification failure. Malformed,
	// tampered and expired tokens all map to it so callers cannot branch
	// on why verification failed.
	ErrTokenRejected = errors.New("token rejected")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenReused        = errors.New("refresh token already used")
	ErrIdentityNotFound   = errors.New("identity not found")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}
