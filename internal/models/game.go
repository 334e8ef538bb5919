package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
)

// GameStatus is the durable lifecycle of a game row.
type GameStatus string

const (
	GameWaiting   GameStatus = "waiting"
	GamePlaying   GameStatus = "playing"
	GameFinished  GameStatus = "finished"
	GameAbandoned GameStatus = "abandoned"
)

// Game mirrors a row in the games table.
type Game struct {
	ID         uuid.UUID   `json:"id"`
	Player1ID  uuid.UUID   `json:"player1Id"`
	Player2ID  *uuid.UUID  `json:"player2Id,omitempty"`
	WinnerID   *uuid.UUID  `json:"winnerId,omitempty"`
	Status     GameStatus  `json:"status"`
	Board      board.Board `json:"board"`
	CreatedAt  time.Time   `json:"createdAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// IsFinished reports whether the game is over, either with a recorded result or abandoned.
func (g Game) IsFinished() bool {
	return g.Status == GameFinished || g.Status == GameAbandoned
}

// IsAbandoned reports whether the game ended without a result.
func (g Game) IsAbandoned() bool {
	return g.Status == GameAbandoned
}

// GameSummary is a finished game joined with its players' names, used by the statistics endpoints.
type GameSummary struct {
	ID              uuid.UUID  `json:"id"`
	Player1Username string     `json:"player1"`
	Player2Username string     `json:"player2"`
	WinnerID        *uuid.UUID `json:"winnerId,omitempty"`
	WinnerUsername  string     `json:"winner,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// DurationSeconds is the rounded time between creation and finish, or nil for unfinished games.
func (g GameSummary) DurationSeconds() *int64 {
	if g.FinishedAt == nil {
		return nil
	}
	d := g.FinishedAt.Sub(g.CreatedAt).Round(time.Second)
	secs := int64(d / time.Second)
	return &secs
}

// RankingEntry is one row of the leaderboard.
type RankingEntry struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	TotalGames int       `json:"totalGames"`
	WinRate    float64   `json:"winRate"`
}

// GameCounts aggregates the games table by status.
type GameCounts struct {
	Total           int `json:"totalGames"`
	Finished        int `json:"finishedGames"`
	Active          int `json:"activeGames"`
	Waiting         int `json:"waitingGames"`
	Abandoned       int `json:"abandonedGames"`
	GamesWithWinner int `json:"gamesWithWinner"`
	Draws           int `json:"draws"`
}

// UserCounts aggregates the users table.
type UserCounts struct {
	TotalUsers      int     `json:"totalUsers"`
	TotalGames      int     `json:"totalGames"`
	TotalWins       int     `json:"totalWins"`
	AvgGamesPerUser float64 `json:"avgGamesPerUser"`
}

// GameResult is what finishing a game records. WinnerID and LoserID are both nil on a draw.
type GameResult struct {
	GameID   uuid.UUID
	Board    board.Board
	WinnerID *uuid.UUID
	LoserID  *uuid.UUID
}

// IsDraw reports whether the result has no winner.
func (r GameResult) IsDraw() bool {
	return r.WinnerID == nil
}
