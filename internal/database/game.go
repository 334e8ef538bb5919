// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/tictactoe/internal/board"
	"github.com/jason-s-yu/tictactoe/internal/models"
)

const gameColumns = `id, player1_id, player2_id, winner_id, status, board, created_at, finished_at`

func scanGame(row pgx.Row) (models.Game, error) {
	var (
		g   models.Game
		raw []byte
	)
	err := row.Scan(&g.ID, &g.Player1ID, &g.Player2ID, &g.WinnerID, &g.Status, &raw, &g.CreatedAt, &g.FinishedAt)
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal(raw, &g.Board); err != nil {
		return g, fmt.Errorf("decode board of game %s: %w", g.ID, err)
	}
	return g, nil
}

func encodeBoard(b board.Board) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}
	return data, nil
}

// CreateGame inserts a waiting game with an empty board.
func (s *Store) CreateGame(ctx context.Context, player1 uuid.UUID) (models.Game, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return models.Game{}, fmt.Errorf("failed to generate game id: %w", err)
	}
	data, err := encodeBoard(board.New())
	if err != nil {
		return models.Game{}, err
	}

	q := `
		INSERT INTO games (id, player1_id, status, board)
		VALUES ($1, $2, 'waiting', $3)
		RETURNING ` + gameColumns

	g, err := scanGame(s.pool.QueryRow(ctx, q, id, player1, data))
	if err != nil {
		return models.Game{}, fmt.Errorf("create game for %s: %w", player1, err)
	}
	return g, nil
}

// JoinGame seats player2 if the game is still waiting. A game that is no longer waiting, or one
// created by player2, yields ErrGameTaken.
func (s *Store) JoinGame(ctx context.Context, gameID, player2 uuid.UUID) (models.Game, error) {
	q := `
		UPDATE games
		SET player2_id = $2, status = 'playing'
		WHERE id = $1 AND status = 'waiting' AND player1_id <> $2
		RETURNING ` + gameColumns

	g, err := scanGame(s.pool.QueryRow(ctx, q, gameID, player2))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Game{}, fmt.Errorf("join game %s: %w", gameID, ErrGameTaken)
	}
	if err != nil {
		return models.Game{}, fmt.Errorf("join game %s: %w", gameID, err)
	}
	return g, nil
}

// UpdateBoard stores a snapshot of a game in play.
func (s *Store) UpdateBoard(ctx context.Context, gameID uuid.UUID, b board.Board) error {
	data, err := encodeBoard(b)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE games SET board = $2 WHERE id = $1 AND status = 'playing'`, gameID, data)
	if err != nil {
		return fmt.Errorf("update board of game %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update board of game %s: no game in play: %w", gameID, ErrNotFound)
	}
	return nil
}

// FinishGame records the final board and result, and updates both players' counters, in one
// transaction. A draw changes no counters. Only a game in play can be finished: for a game that is
// waiting, finished or abandoned nothing is written and ErrAlreadyFinished is returned.
func (s *Store) FinishGame(ctx context.Context, res models.GameResult) error {
	data, err := encodeBoard(res.Board)
	if err != nil {
		return err
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET board = $2, status = 'finished', winner_id = $3, finished_at = NOW()
			WHERE id = $1 AND status = 'playing'
		`
		tag, err := tx.Exec(ctx, q, res.GameID, data, res.WinnerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyFinished
		}
		if res.WinnerID != nil {
			if err := s.IncrementPlayerResult(ctx, tx, *res.WinnerID, true); err != nil {
				return err
			}
		}
		if res.LoserID != nil {
			if err := s.IncrementPlayerResult(ctx, tx, *res.LoserID, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish game %s: %w", res.GameID, err)
	}
	return nil
}

// GetGame loads a game. It returns ErrNotFound when no such game exists.
func (s *Store) GetGame(ctx context.Context, gameID uuid.UUID) (models.Game, error) {
	g, err := scanGame(s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Game{}, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return models.Game{}, fmt.Errorf("get game %s: %w", gameID, err)
	}
	return g, nil
}

// AbandonGame marks a waiting or playing game abandoned. Finished games are left alone.
func (s *Store) AbandonGame(ctx context.Context, gameID uuid.UUID) error {
	_, err := s.AbandonGames(ctx, []uuid.UUID{gameID})
	return err
}

// AbandonGames marks every listed game that is still waiting or playing as abandoned and returns
// how many rows changed. No counters are touched.
func (s *Store) AbandonGames(ctx context.Context, gameIDs []uuid.UUID) (int64, error) {
	if len(gameIDs) == 0 {
		return 0, nil
	}
	q := `
		UPDATE games
		SET status = 'abandoned', finished_at = NOW()
		WHERE id = ANY($1) AND status IN ('waiting', 'playing')
	`
	tag, err := s.pool.Exec(ctx, q, gameIDs)
	if err != nil {
		return 0, fmt.Errorf("abandon games: %w", err)
	}
	return tag.RowsAffected(), nil
}
