package auth

import (
	"context"
	"fmt"
	"time"
)

// Lockout policy is fixed: three consecutive failures lock login for the
// identity for fifteen minutes.
const (
	lockoutThreshold = 3
	lockoutWindow    = 15 * time.Minute
)

type AttemptStore interface {
	GetAttempt(ctx context.Context, identityID string) (LoginAttempt, error)
	RecordFailure(ctx context.Context, identityID string, at time.Time) error
	ResetAttempt(ctx context.Context, identityID string) error
}

// AttemptGuard throttles brute-force logins per identity.
type AttemptGuard struct {
	store AttemptStore
}

func NewAttemptGuard(store AttemptStore) *AttemptGuard {
	return &AttemptGuard{store: store}
}

// CheckAllowed reports whether the identity may attempt a login right now.
// The lock lapses purely by elapsed time against the last failure; the
// failure count itself is only cleared by a successful login.
func (g *AttemptGuard) CheckAllowed(ctx context.Context, identityID string) error {
	attempt, err := g.store.GetAttempt(ctx, identityID)
	if err != nil {
		return fmt.Errorf("read login attempt: %w", err)
	}
	if attempt.FailedCount < lockoutThreshold || attempt.LastFailureAt == nil {
		return nil
	}

	lockedUntil := attempt.LastFailureAt.Add(lockoutWindow)
	if time.Now().UTC().Before(lockedUntil) {
		return ErrLoginLocked{Until: lockedUntil}
	}

	return nil
}

func (g *AttemptGuard) RecordFailure(ctx context.Context, identityID string) error {
	if err := g.store.RecordFailure(ctx, identityID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

func (g *AttemptGuard) RecordSuccess(ctx context.Context, identityID string) error {
	if err := g.store.ResetAttempt(ctx, identityID); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}
