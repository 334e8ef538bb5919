package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/tictactoe/internal/models"
)

const userColumns = `id, username, wins, losses, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Wins, &u.Losses, &u.CreatedAt)
	return u, err
}

// FindOrCreateUser returns the user with this exact username, creating it with zero counters if needed.
func (s *Store) FindOrCreateUser(ctx context.Context, username string) (models.User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to generate user id: %w", err)
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	q := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, id, username))
	if err != nil {
		return models.User{}, fmt.Errorf("find or create user %q: %w", username, err)
	}
	return u, nil
}

// GetUserByID loads a user. It returns ErrNotFound when no such user exists.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// IncrementPlayerResult adds one win or one loss to a user inside tx.
func (s *Store) IncrementPlayerResult(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, won bool) error {
	q := `UPDATE users SET losses = losses + 1 WHERE id = $1`
	if won {
		q = `UPDATE users SET wins = wins + 1 WHERE id = $1`
	}
	tag, err := tx.Exec(ctx, q, playerID)
	if err != nil {
		return fmt.Errorf("increment result for %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("increment result for %s: %w", playerID, ErrNotFound)
	}
	return nil
}
