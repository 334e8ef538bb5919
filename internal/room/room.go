package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
)

// Phase is where a room is in its lifecycle. Rooms only move forward: OPEN, ACTIVE, CLOSED.
type Phase string

const (
	PhaseOpen   Phase = "OPEN"
	PhaseActive Phase = "ACTIVE"
	PhaseClosed Phase = "CLOSED"
)

// IDPrefix is prepended to a game id to form its room id.
const IDPrefix = "game_"

// IDFor returns the room id of a game.
func IDFor(gameID uuid.UUID) string {
	return IDPrefix + gameID.String()
}

// Seat is one participant. Seat one always plays X.
type Seat struct {
	PlayerID  uuid.UUID
	Username  string
	Symbol    board.Mark
	Connected bool
}

func (s Seat) view() protocol.SeatView {
	return protocol.SeatView{ID: s.PlayerID, Username: s.Username, Symbol: s.Symbol}
}

// Room is one match. All fields are guarded by mu, which the coordinator holds for the whole of
// every operation on the room, persistence calls included.
type Room struct {
	mu sync.Mutex

	ID        string
	GameID    uuid.UUID
	Seat1     Seat
	Seat2     *Seat
	Board     board.Board
	Turn      uuid.UUID
	Phase     Phase
	CreatedAt time.Time

	// seq numbers the events published for this room.
	seq int
}

func newRoom(gameID uuid.UUID, creator Seat, createdAt time.Time) *Room {
	creator.Symbol = board.X
	creator.Connected = true
	return &Room{
		ID:        IDFor(gameID),
		GameID:    gameID,
		Seat1:     creator,
		Board:     board.New(),
		Phase:     PhaseOpen,
		CreatedAt: createdAt,
	}
}

// seat returns the seat held by playerID, or nil.
func (r *Room) seat(playerID uuid.UUID) *Seat {
	if r.Seat1.PlayerID == playerID {
		return &r.Seat1
	}
	if r.Seat2 != nil && r.Seat2.PlayerID == playerID {
		return r.Seat2
	}
	return nil
}

// opponent returns the seat facing playerID, or nil.
func (r *Room) opponent(playerID uuid.UUID) *Seat {
	if r.Seat2 == nil {
		return nil
	}
	switch playerID {
	case r.Seat1.PlayerID:
		return r.Seat2
	case r.Seat2.PlayerID:
		return &r.Seat1
	}
	return nil
}

// seatBySymbol returns the seat playing mark, or nil.
func (r *Room) seatBySymbol(mark board.Mark) *Seat {
	if r.Seat1.Symbol == mark {
		return &r.Seat1
	}
	if r.Seat2 != nil && r.Seat2.Symbol == mark {
		return r.Seat2
	}
	return nil
}

// members lists the seated players.
func (r *Room) members() []uuid.UUID {
	ids := []uuid.UUID{r.Seat1.PlayerID}
	if r.Seat2 != nil {
		ids = append(ids, r.Seat2.PlayerID)
	}
	return ids
}

func (r *Room) nextSeq() int {
	r.seq++
	return r.seq
}

// Snapshot is a copy of a room's state, safe to read without the room lock.
type Snapshot struct {
	ID        string
	GameID    uuid.UUID
	Seat1     Seat
	Seat2     *Seat
	Board     board.Board
	Turn      uuid.UUID
	Phase     Phase
	CreatedAt time.Time
}

// Snapshot copies the room under its lock.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		ID:        r.ID,
		GameID:    r.GameID,
		Seat1:     r.Seat1,
		Board:     r.Board,
		Turn:      r.Turn,
		Phase:     r.Phase,
		CreatedAt: r.CreatedAt,
	}
	if r.Seat2 != nil {
		seat2 := *r.Seat2
		s.Seat2 = &seat2
	}
	return s
}
