package showtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Showtime struct {
	ID         string    `json:"id"`
	MovieTitle string    `json:"movie_title"`
	StartsAt   time.Time `json:"starts_at"`
	Screen     int       `json:"screen"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ShowtimeInput struct {
	MovieTitle string
	StartsAt   time.Time
	Screen     int
	PriceCents int64
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Showtime, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, movie_title, starts_at, screen, price_cents, created_at, updated_at
		FROM showtimes
		ORDER BY starts_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query showtimes: %w", err)
	}
	defer rows.Close()

	showtimes := make([]Showtime, 0)
	for rows.Next() {
		var s Showtime
		if err := rows.Scan(&s.ID, &s.MovieTitle, &s.StartsAt, &s.Screen, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan showtime: %w", err)
		}
		showtimes = append(showtimes, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate showtimes: %w", err)
	}

	return showtimes, nil
}

func (r *Repository) Create(ctx context.Context, input ShowtimeInput) (Showtime, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Showtime{}, fmt.Errorf("generate showtime id: %w", err)
	}

	now := time.Now().UTC()
	s := Showtime{
		ID:         id.String(),
		MovieTitle: input.MovieTitle,
		StartsAt:   input.StartsAt,
		Screen:     input.Screen,
		PriceCents: input.PriceCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO showtimes (id, movie_title, starts_at, screen, price_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.MovieTitle, s.StartsAt, s.Screen, s.PriceCents, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Showtime{}, fmt.Errorf("insert showtime: %w", err)
	}

	return s, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM showtimes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete showtime: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("showtime rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
