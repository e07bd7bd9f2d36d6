package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"cinema-reservation/internal/auth"
)

var ErrEmailTaken = errors.New("email already registered")

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, email, nickname, passwordHash string, role auth.Role) (Profile, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Profile{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	profile := Profile{
		ID:        id.String(),
		Email:     email,
		Nickname:  nickname,
		Role:      string(role),
		CreatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, nickname, password_hash, user_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, profile.ID, email, nickname, passwordHash, string(role), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrEmailTaken
		}
		return Profile{}, fmt.Errorf("insert user: %w", err)
	}

	return profile, nil
}

func (r *Repository) ProfileByID(ctx context.Context, id string) (Profile, error) {
	var profile Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, nickname, user_role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&profile.ID, &profile.Email, &profile.Nickname, &profile.Role, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, auth.ErrIdentityNotFound
		}
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}

	return profile, nil
}

// EnsureAdmin creates the admin identity from the environment on first boot
// and refreshes its password hash on subsequent boots.
func (r *Repository) EnsureAdmin(ctx context.Context, email, nickname, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate admin id: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, nickname, password_hash, user_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'admin', $5, $5)
		ON CONFLICT (email)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			user_role = 'admin',
			updated_at = EXCLUDED.updated_at
	`, id.String(), email, nickname, passwordHash, now)
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}

	return nil
}
