package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the Postgres implementation of IdentityStore,
// RevocationLedger and AttemptStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) IdentityByEmail(ctx context.Context, email string) (Identity, error) {
	return r.identityWhere(ctx, `email = $1`, email)
}

func (r *Repository) IdentityByID(ctx context.Context, id string) (Identity, error) {
	return r.identityWhere(ctx, `id = $1`, id)
}

func (r *Repository) identityWhere(ctx context.Context, clause string, arg any) (Identity, error) {
	var identity Identity
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, nickname, password_hash, user_role, created_at, updated_at
		FROM users
		WHERE `+clause, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Nickname,
		&identity.PasswordHash,
		&identity.Role,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("query identity: %w", err)
	}

	return identity, nil
}

func (r *Repository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_token_jtis WHERE jti = $1)
	`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query revocation: %w", err)
	}

	return revoked, nil
}

func (r *Repository) Revoke(ctx context.Context, jti, identityID string, expiresAt time.Time) error {
	_, err := r.insertRevocation(ctx, jti, identityID, expiresAt)
	return err
}

// Consume inserts the revocation record and reports whether this call created
// it. The UNIQUE constraint on jti makes the insert the atomic first-use
// gate for refresh rotation.
func (r *Repository) Consume(ctx context.Context, jti, identityID string, expiresAt time.Time) (bool, error) {
	inserted, err := r.insertRevocation(ctx, jti, identityID, expiresAt)
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

func (r *Repository) insertRevocation(ctx context.Context, jti, identityID string, expiresAt time.Time) (int64, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return 0, fmt.Errorf("generate revocation id: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_token_jtis (id, jti, identity_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING
	`, id.String(), jti, identityID, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert revocation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revocation rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) GetAttempt(ctx context.Context, identityID string) (LoginAttempt, error) {
	attempt := LoginAttempt{IdentityID: identityID}

	var lastFailure sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT failed_count, last_failure_at
		FROM login_attempts
		WHERE identity_id = $1
	`, identityID).Scan(&attempt.FailedCount, &lastFailure)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lastFailure.Valid {
		at := lastFailure.Time.UTC()
		attempt.LastFailureAt = &at
	}

	return attempt, nil
}

func (r *Repository) RecordFailure(ctx context.Context, identityID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (identity_id, failed_count, last_failure_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (identity_id)
		DO UPDATE SET
			failed_count = login_attempts.failed_count + 1,
			last_failure_at = EXCLUDED.last_failure_at
	`, identityID, at.UTC())
	if err != nil {
		return fmt.Errorf("upsert login attempt: %w", err)
	}

	return nil
}

func (r *Repository) ResetAttempt(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE login_attempts
		SET failed_count = 0, last_failure_at = NULL
		WHERE identity_id = $1
	`, identityID)
	if err != nil {
		return fmt.Errorf("reset login attempt: %w", err)
	}

	return nil
}

// SweepExpiredRevocations deletes revocation records whose token expiry
// passed the retention cutoff. Dead records are harmless but not free; the
// ledger itself never shrinks outside this sweep.
func (r *Repository) SweepExpiredRevocations(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM revoked_token_jtis
			WHERE expires_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM revoked_token_jtis t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale revocations: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale revocations rows affected: %w", err)
	}

	return affected, nil
}
