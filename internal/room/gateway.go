package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/models"
)

// Gateway is the durable store the coordinator reads and writes through. database.Store
// implements it.
//
// JoinGame fails with database.ErrGameTaken when the game is no longer waiting. FinishGame
// fails with database.ErrAlreadyFinished when a result is already recorded. GetGame and
// GetUserByID fail with database.ErrNotFound for unknown ids.
type Gateway interface {
	FindOrCreateUser(ctx context.Context, username string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateGame(ctx context.Context, player1 uuid.UUID) (models.Game, error)
	JoinGame(ctx context.Context, gameID, player2 uuid.UUID) (models.Game, error)
	UpdateBoard(ctx context.Context, gameID uuid.UUID, b board.Board) error
	FinishGame(ctx context.Context, res models.GameResult) error
	GetGame(ctx context.Context, gameID uuid.UUID) (models.Game, error)
	AbandonGame(ctx context.Context, gameID uuid.UUID) error
}

// EventPublisher receives every accepted room transition. cache.ActionLog implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev cache.RoomEvent) error
}
