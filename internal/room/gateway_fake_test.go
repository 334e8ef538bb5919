package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/database"
	"github.com/jason-s-yu/tictactoe/internal/models"
)

// fakeGateway is an in-memory Gateway with the same conditional semantics as the pgx store.
type fakeGateway struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	names map[string]uuid.UUID
	games map[uuid.UUID]*models.Game

	finishCalls  int
	abandonCalls int

	failUpdate error
	failFinish error
	failJoin   error
	failGet    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		users: make(map[uuid.UUID]*models.User),
		names: make(map[string]uuid.UUID),
		games: make(map[uuid.UUID]*models.Game),
	}
}

func (g *fakeGateway) FindOrCreateUser(_ context.Context, username string) (models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.names[username]; ok {
		return *g.users[id], nil
	}
	u := &models.User{ID: uuid.New(), Username: username, CreatedAt: time.Now()}
	g.users[u.ID] = u
	g.names[username] = u.ID
	return *u, nil
}

func (g *fakeGateway) GetUserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, database.ErrNotFound)
	}
	return *u, nil
}

func (g *fakeGateway) CreateGame(_ context.Context, player1 uuid.UUID) (models.Game, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	game := &models.Game{
		ID:        uuid.New(),
		Player1ID: player1,
		Status:    models.GameWaiting,
		Board:     board.New(),
		CreatedAt: time.Now(),
	}
	g.games[game.ID] = game
	return *game, nil
}

func (g *fakeGateway) JoinGame(_ context.Context, gameID, player2 uuid.UUID) (models.Game, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failJoin != nil {
		return models.Game{}, g.failJoin
	}
	game, ok := g.games[gameID]
	if !ok || game.Status != models.GameWaiting || game.Player1ID == player2 {
		return models.Game{}, fmt.Errorf("join game %s: %w", gameID, database.ErrGameTaken)
	}
	game.Player2ID = &player2
	game.Status = models.GamePlaying
	return *game, nil
}

func (g *fakeGateway) UpdateBoard(_ context.Context, gameID uuid.UUID, b board.Board) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpdate != nil {
		return g.failUpdate
	}
	game, ok := g.games[gameID]
	if !ok || game.Status != models.GamePlaying {
		return database.ErrNotFound
	}
	game.Board = b
	return nil
}

func (g *fakeGateway) FinishGame(_ context.Context, res models.GameResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFinish != nil {
		return g.failFinish
	}
	game, ok := g.games[res.GameID]
	if !ok {
		return database.ErrNotFound
	}
	if game.Status != models.GamePlaying {
		return database.ErrAlreadyFinished
	}
	g.finishCalls++
	now := time.Now()
	game.Board = res.Board
	game.Status = models.GameFinished
	game.WinnerID = res.WinnerID
	game.FinishedAt = &now
	if res.WinnerID != nil {
		g.users[*res.WinnerID].Wins++
	}
	if res.LoserID != nil {
		g.users[*res.LoserID].Losses++
	}
	return nil
}

func (g *fakeGateway) GetGame(_ context.Context, gameID uuid.UUID) (models.Game, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failGet != nil {
		return models.Game{}, g.failGet
	}
	game, ok := g.games[gameID]
	if !ok {
		return models.Game{}, database.ErrNotFound
	}
	return *game, nil
}

func (g *fakeGateway) AbandonGame(_ context.Context, gameID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.abandonCalls++
	game, ok := g.games[gameID]
	if ok && (game.Status == models.GameWaiting || game.Status == models.GamePlaying) {
		game.Status = models.GameAbandoned
	}
	return nil
}

// finishExternally records a result as if another process had finished the game.
func (g *fakeGateway) finishExternally(gameID uuid.UUID, b board.Board, winner *uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	game := g.games[gameID]
	game.Status = models.GameFinished
	game.Board = b
	game.WinnerID = winner
	game.FinishedAt = &now
}

func (g *fakeGateway) game(id uuid.UUID) models.Game {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.games[id]
}

func (g *fakeGateway) user(id uuid.UUID) models.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.users[id]
}

func (g *fakeGateway) finishes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finishCalls
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []cache.RoomEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev cache.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
