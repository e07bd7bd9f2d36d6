package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cinema-reservation/internal/observability"
)

type IdentityStore interface {
	IdentityByEmail(ctx context.Context, email string) (Identity, error)
	IdentityByID(ctx context.Context, id string) (Identity, error)
}

// RevocationLedger is the append-only record of invalidated token ids.
// Absence of a record plus a valid signature plus an unexpired claim set is
// the whole proof of validity; there is no separate active-session table.
type RevocationLedger interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// Revoke inserts idempotently. Revoking an already revoked jti is a
	// legal double-path (logout with a rotated-out token).
	Revoke(ctx context.Context, jti, identityID string, expiresAt time.Time) error

	// Consume is the same conditional insert used as an atomic first-use
	// gate: it returns false when a record for the jti already existed.
	Consume(ctx context.Context, jti, identityID string, expiresAt time.Time) (bool, error)
}

// Service orchestrates login, refresh rotation and logout over the stores.
type Service struct {
	identities  IdentityStore
	ledger      RevocationLedger
	guard       *AttemptGuard
	credentials Credentials
	codec       *Codec
	issuer      *Issuer
	logger      *observability.Logger
}

func NewService(
	identities IdentityStore,
	ledger RevocationLedger,
	guard *AttemptGuard,
	credentials Credentials,
	codec *Codec,
	issuer *Issuer,
	logger *observability.Logger,
) *Service {
	return &Service{
		identities:  identities,
		ledger:      ledger,
		guard:       guard,
		credentials: credentials,
		codec:       codec,
		issuer:      issuer,
		logger:      logger,
	}
}

// VerifyToken exposes codec verification to the HTTP layer, e.g. for the
// already-authenticated check on login.
func (s *Service) VerifyToken(token string) (Claims, error) {
	return s.codec.Verify(token)
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	identity, err := s.identities.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.logger.Warn("login_unknown_email", map[string]any{"reason": "identity_not_found"})
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("lookup identity: %w", err)
	}

	// The lockout gate runs before credential verification on every
	// attempt, so a locked identity stays locked even with the right
	// password.
	if err := s.guard.CheckAllowed(ctx, identity.ID); err != nil {
		var locked ErrLoginLocked
		if errors.As(err, &locked) {
			s.logger.Warn("login_locked", map[string]any{
				"identity_id":  identity.ID,
				"locked_until": locked.Until.Format(time.RFC3339),
				"reason":       "lockout_window",
			})
		}
		return TokenPair{}, err
	}

	if !s.credentials.Verify(password, identity.PasswordHash) {
		if err := s.guard.RecordFailure(ctx, identity.ID); err != nil {
			return TokenPair{}, err
		}
		s.logger.Warn("login_failed", map[string]any{
			"identity_id": identity.ID,
			"reason":      "bad_password",
		})
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, identity.ID); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issuer.Issue(identity.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("login_succeeded", map[string]any{
		"identity_id": identity.ID,
		"jti":         pair.AccessClaims.TokenID,
	})

	return pair, nil
}

// Rotate validates a refresh token, consumes it, and issues a replacement
// pair. Consumption is a uniqueness-constrained insert into the ledger, so of
// two concurrent rotations of the same token exactly one wins the insert and
// the other fails as a reuse.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		s.logger.Warn("rotation_rejected", map[string]any{"reason": "verification_failed"})
		return TokenPair{}, ErrInvalidToken
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		s.logger.Warn("rotation_rejected", map[string]any{
			"identity_id": claims.Subject,
			"jti":         claims.TokenID,
			"reason":      "token_reused",
		})
		return TokenPair{}, ErrTokenReused
	}

	identity, err := s.identities.IdentityByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.logger.Warn("rotation_rejected", map[string]any{
				"identity_id": claims.Subject,
				"jti":         claims.TokenID,
				"reason":      "identity_not_found",
			})
			return TokenPair{}, ErrIdentityNotFound
		}
		return TokenPair{}, fmt.Errorf("lookup identity: %w", err)
	}

	consumed, err := s.ledger.Consume(ctx, claims.TokenID, identity.ID, claims.ExpiresAt)
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !consumed {
		s.logger.Warn("rotation_rejected", map[string]any{
			"identity_id": identity.ID,
			"jti":         claims.TokenID,
			"reason":      "token_reused",
		})
		return TokenPair{}, ErrTokenReused
	}

	pair, err := s.issuer.Issue(identity.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("tokens_rotated", map[string]any{
		"identity_id": identity.ID,
		"old_jti":     claims.TokenID,
		"jti":         pair.AccessClaims.TokenID,
	})

	return pair, nil
}

// Logout revokes the jtis of whichever session tokens are still presentable.
// Tokens that fail verification are skipped: an expired or garbled cookie has
// nothing left to revoke.
func (s *Service) Logout(ctx context.Context, identityID, accessToken, refreshToken string) error {
	if err := s.revokeIfValid(ctx, identityID, accessToken); err != nil {
		return err
	}
	return s.revokeIfValid(ctx, identityID, refreshToken)
}

func (s *Service) revokeIfValid(ctx context.Context, identityID, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil
	}

	if err := s.ledger.Revoke(ctx, claims.TokenID, identityID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.Info("token_revoked", map[string]any{
		"identity_id": identityID,
		"jti":         claims.TokenID,
	})

	return nil
}
