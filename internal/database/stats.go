package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/tictactoe/internal/models"
)

// Ranking lists players with at least one decided game, most wins first, ties broken by win rate.
func (s *Store) Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	q := `
		SELECT id, username, wins, losses, wins + losses AS total_games,
		       ROUND(wins::numeric / (wins + losses) * 100, 2)::float8 AS win_rate
		FROM users
		WHERE wins + losses > 0
		ORDER BY wins DESC, win_rate DESC, username ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RankingEntry, error) {
		var e models.RankingEntry
		err := row.Scan(&e.ID, &e.Username, &e.Wins, &e.Losses, &e.TotalGames, &e.WinRate)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return entries, nil
}

const summarySelect = `
	SELECT g.id, p1.username, COALESCE(p2.username, ''), g.winner_id, COALESCE(w.username, ''),
	       g.created_at, g.finished_at
	FROM games g
	JOIN users p1 ON p1.id = g.player1_id
	LEFT JOIN users p2 ON p2.id = g.player2_id
	LEFT JOIN users w ON w.id = g.winner_id
`

func collectSummaries(rows pgx.Rows) ([]models.GameSummary, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GameSummary, error) {
		var g models.GameSummary
		err := row.Scan(&g.ID, &g.Player1Username, &g.Player2Username, &g.WinnerID, &g.WinnerUsername,
			&g.CreatedAt, &g.FinishedAt)
		return g, err
	})
}

// RecentGames lists finished games, most recently finished first.
func (s *Store) RecentGames(ctx context.Context, limit int) ([]models.GameSummary, error) {
	q := summarySelect + `
		WHERE g.status = 'finished'
		ORDER BY g.finished_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	games, err := collectSummaries(rows)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	return games, nil
}

// PlayerGames lists the finished games a player took part in, most recent first.
func (s *Store) PlayerGames(ctx context.Context, playerID uuid.UUID, limit int) ([]models.GameSummary, error) {
	q := summarySelect + `
		WHERE g.status = 'finished' AND (g.player1_id = $1 OR g.player2_id = $1)
		ORDER BY g.finished_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, q, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("games of player %s: %w", playerID, err)
	}
	games, err := collectSummaries(rows)
	if err != nil {
		return nil, fmt.Errorf("games of player %s: %w", playerID, err)
	}
	return games, nil
}

// GameCounts aggregates the games table by status.
func (s *Store) GameCounts(ctx context.Context) (models.GameCounts, error) {
	q := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'finished'),
		       COUNT(*) FILTER (WHERE status = 'playing'),
		       COUNT(*) FILTER (WHERE status = 'waiting'),
		       COUNT(*) FILTER (WHERE status = 'abandoned'),
		       COUNT(*) FILTER (WHERE status = 'finished' AND winner_id IS NOT NULL),
		       COUNT(*) FILTER (WHERE status = 'finished' AND winner_id IS NULL)
		FROM games
	`
	var c models.GameCounts
	err := s.pool.QueryRow(ctx, q).Scan(&c.Total, &c.Finished, &c.Active, &c.Waiting, &c.Abandoned,
		&c.GamesWithWinner, &c.Draws)
	if err != nil {
		return c, fmt.Errorf("game counts: %w", err)
	}
	return c, nil
}

// UserCounts aggregates the users table.
func (s *Store) UserCounts(ctx context.Context) (models.UserCounts, error) {
	q := `
		SELECT COUNT(*),
		       COALESCE(SUM(wins + losses), 0),
		       COALESCE(SUM(wins), 0),
		       COALESCE(ROUND(AVG(wins + losses), 2), 0)::float8
		FROM users
	`
	var c models.UserCounts
	err := s.pool.QueryRow(ctx, q).Scan(&c.TotalUsers, &c.TotalGames, &c.TotalWins, &c.AvgGamesPerUser)
	if err != nil {
		return c, fmt.Errorf("user counts: %w", err)
	}
	return c, nil
}
