package room

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
	"github.com/jason-s-yu/tictactoe/internal/cache"
	"github.com/jason-s-yu/tictactoe/internal/database"
	"github.com/jason-s-yu/tictactoe/internal/models"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
	"github.com/jason-s-yu/tictactoe/internal/registry"
	"github.com/sirupsen/logrus"
)

// DefaultGracePeriod is how long a finished room is kept before it is purged.
const DefaultGracePeriod = 30 * time.Second

const publishTimeout = 2 * time.Second

// Options configures a Coordinator.
type Options struct {
	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// Events receives every accepted room transition. Nil disables the action log.
	Events EventPublisher
}

// Coordinator owns the room table. Every room operation holds that room's lock from its first
// check to its last broadcast, so operations on one room never interleave.
type Coordinator struct {
	gateway   Gateway
	registry  *registry.Registry
	rooms     *Store
	scheduler *Scheduler
	events    EventPublisher
	grace     time.Duration
	logger    *logrus.Logger
	now       func() time.Time

	publishing sync.WaitGroup
}

// NewCoordinator wires a coordinator to its gateway and connection registry.
func NewCoordinator(gateway Gateway, reg *registry.Registry, logger *logrus.Logger, opts Options) *Coordinator {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Coordinator{
		gateway:   gateway,
		registry:  reg,
		rooms:     NewStore(),
		scheduler: NewScheduler(),
		events:    opts.Events,
		grace:     grace,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterPlayer finds or creates the identity named displayName and binds it to conn.
func (c *Coordinator) RegisterPlayer(ctx context.Context, conn *registry.Connection, displayName string) (models.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return models.User{}, &ValidationError{Field: "username", Reason: "is required"}
	}
	if utf8.RuneCountInString(name) > protocol.MaxUsernameLength {
		return models.User{}, &ValidationError{
			Field:  "username",
			Reason: fmt.Sprintf("must be at most %d characters", protocol.MaxUsernameLength),
		}
	}

	user, err := c.gateway.FindOrCreateUser(ctx, name)
	if err != nil {
		return models.User{}, persistenceError("find or create user", err)
	}
	if err := c.bind(conn, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AttachPlayer binds an already known identity, typically one proven by a token, to conn.
func (c *Coordinator) AttachPlayer(ctx context.Context, conn *registry.Connection, playerID uuid.UUID) (models.User, error) {
	user, err := c.gateway.GetUserByID(ctx, playerID)
	if errors.Is(err, database.ErrNotFound) {
		return models.User{}, ErrNotRegistered
	}
	if err != nil {
		return models.User{}, persistenceError("get user", err)
	}
	if err := c.bind(conn, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (c *Coordinator) bind(conn *registry.Connection, user models.User) error {
	if current, _, ok := c.registry.Identity(conn); ok && current != user.ID {
		if _, seated := c.registry.RoomOf(current); seated {
			return ErrAlreadyInRoom
		}
	}
	replaced := c.registry.Bind(user.ID, user.Username, conn)
	if replaced != nil {
		replaced.Close(registry.StatusReplaced, "signed in from another connection")
		c.logger.WithFields(logrus.Fields{
			"player": user.ID,
			"conn":   replaced.ID,
		}).Info("replaced previous connection")
	}
	c.logger.WithFields(logrus.Fields{
		"player":   user.ID,
		"username": user.Username,
		"conn":     conn.ID,
	}).Info("player registered")
	return nil
}

// CreateRoom opens a new room with playerID in seat one and returns its id.
func (c *Coordinator) CreateRoom(ctx context.Context, playerID uuid.UUID) (string, error) {
	conn, ok := c.registry.Lookup(playerID)
	if !ok {
		return "", ErrNotRegistered
	}
	_, username, ok := c.registry.Identity(conn)
	if !ok {
		return "", ErrNotRegistered
	}
	if c.registry.Busy(playerID) {
		return "", ErrAlreadyInRoom
	}

	game, err := c.gateway.CreateGame(ctx, playerID)
	if err != nil {
		return "", persistenceError("create game", err)
	}
	createdAt := game.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}
	r := newRoom(game.ID, Seat{PlayerID: playerID, Username: username}, createdAt)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := c.registry.ClaimRoom(playerID, r.ID); err != nil {
		// Another request seated the player while the game was being created.
		if abandonErr := c.gateway.AbandonGame(ctx, game.ID); abandonErr != nil {
			c.logger.WithError(abandonErr).WithField("game", game.ID).Warn("failed to abandon orphaned game")
		}
		if errors.Is(err, registry.ErrOffline) {
			return "", ErrNotRegistered
		}
		return "", ErrAlreadyInRoom
	}
	c.rooms.Add(r)

	c.registry.Send(playerID, protocol.RoomCreated{
		Type:   protocol.TypeRoomCreated,
		RoomID: r.ID,
		GameID: r.GameID,
		Symbol: r.Seat1.Symbol,
		Board:  r.Board,
	})
	c.registry.Broadcast(protocol.NewRoomAvailable{
		Type:    protocol.TypeNewRoomAvailable,
		RoomID:  r.ID,
		GameID:  r.GameID,
		Player1: username,
	}, playerID)
	c.publish(r, &playerID, cache.EventRoomCreated, map[string]any{"player1": username})

	c.roomLogger(r).WithField("player", playerID).Info("room created")
	return r.ID, nil
}

// JoinRoom seats playerID opposite the creator of an open room and starts the game.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID string, playerID uuid.UUID) error {
	conn, ok := c.registry.Lookup(playerID)
	if !ok {
		return ErrNotRegistered
	}
	_, username, ok := c.registry.Identity(conn)
	if !ok {
		return ErrNotRegistered
	}

	r, ok := c.rooms.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !c.rooms.Contains(r) {
		return ErrRoomNotFound
	}
	if r.Phase != PhaseOpen {
		return ErrRoomNotJoinable
	}
	if r.Seat1.PlayerID == playerID {
		return ErrSelfJoin
	}
	if err := c.registry.ClaimRoom(playerID, r.ID); err != nil {
		if errors.Is(err, registry.ErrOffline) {
			return ErrNotRegistered
		}
		return ErrAlreadyInRoom
	}

	if _, err := c.gateway.JoinGame(ctx, r.GameID, playerID); err != nil {
		c.registry.ClearRoom(playerID, r.ID)
		if errors.Is(err, database.ErrGameTaken) {
			c.withdrawIfAbandoned(ctx, r)
			return ErrRoomNotJoinable
		}
		return persistenceError("join game", err)
	}

	r.Seat2 = &Seat{PlayerID: playerID, Username: username, Symbol: board.O, Connected: true}
	r.Phase = PhaseActive
	r.Turn = r.Seat1.PlayerID

	c.sendRoom(r, protocol.GameStarted{
		Type:        protocol.TypeGameStarted,
		RoomID:      r.ID,
		GameID:      r.GameID,
		Player1:     r.Seat1.view(),
		Player2:     r.Seat2.view(),
		CurrentTurn: r.Turn,
		Board:       r.Board,
	})
	c.registry.Broadcast(protocol.RoomNoLongerAvailable{
		Type:   protocol.TypeRoomNoLongerAvailable,
		RoomID: r.ID,
	}, r.members()...)
	c.publish(r, &playerID, cache.EventGameStarted, map[string]any{
		"player1": r.Seat1.PlayerID,
		"player2": playerID,
	})

	c.roomLogger(r).WithField("player", playerID).Info("game started")
	return nil
}

// ApplyMove places the mover's symbol at position. A move that ends the game records the result
// and closes the room.
func (c *Coordinator) ApplyMove(ctx context.Context, roomID string, playerID uuid.UUID, position int) error {
	current, seated := c.registry.RoomOf(playerID)
	r, exists := c.rooms.Get(roomID)
	if !seated || current != roomID {
		if exists && c.finishedSeat(r, playerID) {
			return ErrNotActive
		}
		return ErrNotInRoom
	}
	if !exists {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !c.rooms.Contains(r) {
		return ErrRoomNotFound
	}
	if r.Phase != PhaseActive {
		return ErrNotActive
	}
	seat := r.seat(playerID)
	if seat == nil {
		return ErrNotInRoom
	}
	if r.Turn != playerID {
		return ErrNotYourTurn
	}

	next, err := r.Board.Place(position, seat.Symbol)
	if err != nil {
		return fmt.Errorf("%w: position %d", ErrIllegalMove, position)
	}
	result := board.Evaluate(next)
	if result.Terminal() {
		return c.finishByMove(ctx, r, seat, position, next, result)
	}

	if err := c.gateway.UpdateBoard(ctx, r.GameID, next); err != nil {
		if errors.Is(err, database.ErrNotFound) && c.withdrawIfAbandoned(ctx, r) {
			return ErrNotActive
		}
		return persistenceError("update board", err)
	}
	opponent := r.opponent(playerID)
	r.Board = next
	r.Turn = opponent.PlayerID

	c.sendRoom(r, protocol.MoveMade{
		Type:        protocol.TypeMoveMade,
		Position:    position,
		Symbol:      seat.Symbol,
		Board:       r.Board,
		CurrentTurn: r.Turn,
		NextPlayer:  opponent.Username,
	})
	c.publish(r, &playerID, cache.EventMoveMade, map[string]any{
		"position": position,
		"symbol":   seat.Symbol,
	})
	return nil
}

// finishedSeat reports whether playerID sat in r and r is closed.
func (c *Coordinator) finishedSeat(r *Room, playerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Phase == PhaseClosed && r.seat(playerID) != nil
}

func (c *Coordinator) finishByMove(ctx context.Context, r *Room, mover *Seat, position int, next board.Board, result board.Result) error {
	var winner, loser *Seat
	if result.Outcome == board.Win {
		winner = r.seatBySymbol(result.Symbol)
		loser = r.opponent(winner.PlayerID)
	}

	out, err := c.finish(ctx, r, next, winner, loser)
	if errors.Is(err, errGameAbandoned) {
		return ErrNotActive
	}
	if err != nil {
		return err
	}

	c.sendRoom(r, protocol.GameFinished{
		Type:        protocol.TypeGameFinished,
		Board:       out.Board,
		Winner:      out.Winner,
		WinnerID:    out.WinnerID,
		IsDraw:      out.WinnerID == nil,
		WinningLine: out.Line,
	})
	c.publish(r, &mover.PlayerID, cache.EventGameFinished, map[string]any{
		"position": position,
		"winnerId": out.WinnerID,
		"isDraw":   out.WinnerID == nil,
		"recorded": out.Recorded,
	})
	c.schedulePurge(r)

	c.roomLogger(r).WithFields(logrus.Fields{
		"winner":   out.WinnerID,
		"recorded": out.Recorded,
	}).Info("game finished")
	return nil
}

// finishOutcome is the result a finish reports to clients. When Recorded is false the game had
// already been finished and the values come from the durable record.
type finishOutcome struct {
	Board      board.Board
	Winner     board.Mark
	WinnerID   *uuid.UUID
	WinnerName string
	Line       *board.Line
	Recorded   bool
}

// errGameAbandoned is returned by finish when the durable game was abandoned. The room has been
// withdrawn and nobody is scored.
var errGameAbandoned = errors.New("game abandoned")

// finish records the end of r with final as its board and closes the room. The durable game is
// re-read first; if it is already finished the write is skipped and the stored result is reported,
// and if it was abandoned the room is withdrawn and errGameAbandoned returned.
// Callers hold r.mu.
func (c *Coordinator) finish(ctx context.Context, r *Room, final board.Board, winner, loser *Seat) (finishOutcome, error) {
	durable, err := c.gateway.GetGame(ctx, r.GameID)
	if err != nil {
		return finishOutcome{}, persistenceError("read game", err)
	}
	if durable.IsAbandoned() {
		c.withdraw(r)
		return finishOutcome{}, errGameAbandoned
	}
	if durable.IsFinished() {
		c.roomLogger(r).Info("game already finished, skipping duplicate finish")
		return c.closeWithDurable(r, durable), nil
	}

	res := models.GameResult{GameID: r.GameID, Board: final}
	if winner != nil {
		winnerID, loserID := winner.PlayerID, loser.PlayerID
		res.WinnerID, res.LoserID = &winnerID, &loserID
	}

	err = c.gateway.FinishGame(ctx, res)
	if errors.Is(err, database.ErrAlreadyFinished) {
		durable, err := c.gateway.GetGame(ctx, r.GameID)
		if err != nil {
			return finishOutcome{}, persistenceError("read game", err)
		}
		if durable.IsAbandoned() {
			c.withdraw(r)
			return finishOutcome{}, errGameAbandoned
		}
		c.roomLogger(r).Info("game finished concurrently, skipping duplicate finish")
		return c.closeWithDurable(r, durable), nil
	}
	if err != nil {
		return finishOutcome{}, persistenceError("finish game", err)
	}

	r.Board = final
	c.close(r)

	out := finishOutcome{
		Board:    final,
		WinnerID: res.WinnerID,
		Line:     board.Evaluate(final).Line,
		Recorded: true,
	}
	if winner != nil {
		out.Winner = winner.Symbol
		out.WinnerName = winner.Username
	}
	return out, nil
}

func (c *Coordinator) closeWithDurable(r *Room, durable models.Game) finishOutcome {
	c.close(r)
	out := finishOutcome{
		Board:    durable.Board,
		WinnerID: durable.WinnerID,
		Line:     board.Evaluate(durable.Board).Line,
	}
	if durable.WinnerID != nil {
		if s := r.seat(*durable.WinnerID); s != nil {
			out.Winner = s.Symbol
			out.WinnerName = s.Username
		}
	}
	return out
}

// withdrawIfAbandoned re-reads the durable game of r and withdraws r if the game was abandoned
// outside this coordinator. Callers hold r.mu.
func (c *Coordinator) withdrawIfAbandoned(ctx context.Context, r *Room) bool {
	durable, err := c.gateway.GetGame(ctx, r.GameID)
	if err != nil {
		c.roomLogger(r).WithError(err).Warn("failed to read game")
		return false
	}
	if !durable.IsAbandoned() {
		return false
	}
	c.withdraw(r)
	return true
}

// withdraw closes r, drops it from the table and tells everyone it is gone. Callers hold r.mu.
func (c *Coordinator) withdraw(r *Room) {
	wasOpen := r.Phase == PhaseOpen
	c.close(r)
	c.rooms.Remove(r)
	if wasOpen {
		c.registry.Broadcast(protocol.RoomNoLongerAvailable{
			Type:   protocol.TypeRoomNoLongerAvailable,
			RoomID: r.ID,
		})
	} else {
		c.sendRoom(r, protocol.GameAbandoned{
			Type:    protocol.TypeGameAbandoned,
			Message: "the game was abandoned",
			RoomID:  r.ID,
		})
	}
	c.publish(r, nil, cache.EventRoomAbandoned, nil)
	c.roomLogger(r).Warn("game abandoned externally, room withdrawn")
}

// close marks r closed and releases both players. Callers hold r.mu.
func (c *Coordinator) close(r *Room) {
	r.Phase = PhaseClosed
	for _, id := range r.members() {
		c.registry.ClearRoom(id, r.ID)
	}
}

// LeaveRoom takes playerID out of its room. Leaving an active game forfeits it to the other seat.
// A player without a room is a no-op.
func (c *Coordinator) LeaveRoom(ctx context.Context, playerID uuid.UUID) error {
	roomID, ok := c.registry.RoomOf(playerID)
	if !ok {
		return nil
	}
	r, ok := c.rooms.Get(roomID)
	if !ok {
		c.registry.ClearRoom(playerID, roomID)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	leaver := r.seat(playerID)
	if !c.rooms.Contains(r) || leaver == nil {
		c.registry.ClearRoom(playerID, roomID)
		return nil
	}

	switch r.Phase {
	case PhaseActive:
		other := r.opponent(playerID)
		out, err := c.finish(ctx, r, r.Board, other, leaver)
		if errors.Is(err, errGameAbandoned) {
			return nil
		}
		if err != nil {
			return err
		}
		c.rooms.Remove(r)
		c.registry.Send(other.PlayerID, protocol.PlayerLeft{
			Type:    protocol.TypePlayerLeft,
			Message: fmt.Sprintf("%s left the game", leaver.Username),
			Winner:  out.WinnerName,
		})
		c.publish(r, &playerID, cache.EventPlayerLeft, map[string]any{
			"winnerId": out.WinnerID,
			"recorded": out.Recorded,
		})
		c.roomLogger(r).WithField("player", playerID).Info("player left active game")

	case PhaseOpen:
		if err := c.gateway.AbandonGame(ctx, r.GameID); err != nil {
			return persistenceError("abandon game", err)
		}
		r.Phase = PhaseClosed
		c.rooms.Remove(r)
		c.registry.ClearRoom(playerID, r.ID)
		c.registry.Broadcast(protocol.RoomNoLongerAvailable{
			Type:   protocol.TypeRoomNoLongerAvailable,
			RoomID: r.ID,
		})
		c.publish(r, &playerID, cache.EventRoomAbandoned, nil)
		c.roomLogger(r).WithField("player", playerID).Info("creator left open room")

	default:
		c.registry.ClearRoom(playerID, r.ID)
	}
	return nil
}

// HandleDisconnect tears down conn. Only a connection that is still its player's current one
// affects rooms: an open room is withdrawn, an active game is left running with the opponent
// notified and a purge scheduled. The player keeps holding the seat of an active game until the
// room closes, so a new connection cannot sit down elsewhere meanwhile.
func (c *Coordinator) HandleDisconnect(ctx context.Context, conn *registry.Connection) {
	playerID, roomID, current := c.registry.Remove(conn)
	if !current || roomID == "" {
		return
	}
	r, ok := c.rooms.Get(roomID)
	if !ok {
		c.registry.ClearRoom(playerID, roomID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seat := r.seat(playerID)
	if !c.rooms.Contains(r) || seat == nil || r.Phase == PhaseClosed {
		c.registry.ClearRoom(playerID, roomID)
		return
	}

	switch r.Phase {
	case PhaseOpen:
		c.registry.ClearRoom(playerID, roomID)
		r.Phase = PhaseClosed
		c.rooms.Remove(r)
		if err := c.gateway.AbandonGame(ctx, r.GameID); err != nil {
			c.roomLogger(r).WithError(err).Warn("failed to abandon game of disconnected creator")
		}
		c.registry.Broadcast(protocol.RoomNoLongerAvailable{
			Type:   protocol.TypeRoomNoLongerAvailable,
			RoomID: r.ID,
		})
		c.publish(r, &playerID, cache.EventRoomAbandoned, nil)
		c.roomLogger(r).WithField("player", playerID).Info("creator disconnected, room withdrawn")

	case PhaseActive:
		seat.Connected = false
		if opponent := r.opponent(playerID); opponent != nil {
			c.registry.Send(opponent.PlayerID, protocol.PlayerDisconnected{
				Type:    protocol.TypePlayerDisconnected,
				Message: fmt.Sprintf("%s disconnected", seat.Username),
				RoomID:  r.ID,
			})
		}
		c.publish(r, &playerID, cache.EventPlayerDisconnected, nil)
		c.schedulePurge(r)
		c.roomLogger(r).WithField("player", playerID).Info("player disconnected from active game")
	}
}

func (c *Coordinator) schedulePurge(r *Room) {
	if !c.scheduler.After(c.grace, func() { c.purge(r) }) {
		c.roomLogger(r).Debug("scheduler stopped, purge dropped")
	}
}

// purge drops r from the table if it is still there. A game that never finished is marked
// abandoned; nobody is scored.
func (c *Coordinator) purge(r *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !c.rooms.Remove(r) {
		return
	}
	for _, id := range r.members() {
		c.registry.ClearRoom(id, r.ID)
	}
	if r.Phase != PhaseClosed {
		r.Phase = PhaseClosed
		if err := c.gateway.AbandonGame(context.Background(), r.GameID); err != nil {
			c.roomLogger(r).WithError(err).Warn("failed to abandon purged game")
		}
	}
	c.publish(r, nil, cache.EventRoomPurged, nil)
	c.roomLogger(r).Debug("room purged")
}

// ListOpenRooms yields the rooms that are open when the sequence is ranged over, from the set of
// rooms present at call time. The sequence can be consumed once; ranging over it again yields
// nothing.
func (c *Coordinator) ListOpenRooms() iter.Seq[protocol.OpenRoom] {
	rooms := c.rooms.List()
	var consumed atomic.Bool
	return func(yield func(protocol.OpenRoom) bool) {
		if consumed.Swap(true) {
			return
		}
		for _, r := range rooms {
			s := r.Snapshot()
			if s.Phase != PhaseOpen {
				continue
			}
			if !yield(protocol.OpenRoom{
				RoomID:    s.ID,
				GameID:    s.GameID,
				Player1:   s.Seat1.Username,
				CreatedAt: s.CreatedAt,
			}) {
				return
			}
		}
	}
}

// GetPlayerSummary returns the durable counters of a player.
func (c *Coordinator) GetPlayerSummary(ctx context.Context, playerID uuid.UUID) (models.User, error) {
	user, err := c.gateway.GetUserByID(ctx, playerID)
	if errors.Is(err, database.ErrNotFound) {
		return models.User{}, ErrNotRegistered
	}
	if err != nil {
		return models.User{}, persistenceError("get user", err)
	}
	return user, nil
}

// Room returns a copy of a live room.
func (c *Coordinator) Room(id string) (Snapshot, bool) {
	r, ok := c.rooms.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return r.Snapshot(), true
}

// RoomCount returns the number of rooms in the table, closed rooms awaiting purge included.
func (c *Coordinator) RoomCount() int {
	return c.rooms.Len()
}

// Shutdown drops pending purges and waits for in-flight action log writes.
func (c *Coordinator) Shutdown() {
	c.scheduler.Shutdown()
	c.publishing.Wait()
}

func (c *Coordinator) sendRoom(r *Room, msg protocol.Outbound) {
	for _, id := range r.members() {
		c.registry.Send(id, msg)
	}
}

// publish appends an event to the action log without blocking the caller. Callers hold r.mu.
func (c *Coordinator) publish(r *Room, actor *uuid.UUID, eventType string, payload map[string]any) {
	if c.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	ev := cache.NewRoomEvent(r.GameID, r.ID, r.nextSeq(), actor, eventType, payload)

	c.publishing.Add(1)
	go func() {
		defer c.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := c.events.Publish(ctx, ev); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"room":  ev.RoomID,
				"event": ev.Type,
			}).Warn("failed to publish room event")
		}
	}()
}

func (c *Coordinator) roomLogger(r *Room) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{
		"room": r.ID,
		"game": r.GameID,
	})
}
