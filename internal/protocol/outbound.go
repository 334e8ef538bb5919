package protocol

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/board"
)

// Outbound event types sent by the server.
const (
	TypeUserRegistered        = "user_registered"
	TypeRoomCreated           = "room_created"
	TypeNewRoomAvailable      = "new_room_available"
	TypeRoomNoLongerAvailable = "room_no_longer_available"
	TypeGameStarted           = "game_started"
	TypeMoveMade              = "move_made"
	TypeGameFinished          = "game_finished"
	TypeAvailableRooms        = "available_rooms"
	TypePlayerStats           = "player_stats"
	TypePlayerLeft            = "player_left"
	TypePlayerDisconnected    = "player_disconnected"
	TypeGameAbandoned         = "game_abandoned"
	TypeError                 = "error"
)

// Outbound is implemented by every server event; Type is serialized as the "type" field.
type Outbound interface {
	EventType() string
}

type UserRegistered struct {
	Type     string    `json:"type"`
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`
	Token    string    `json:"token,omitempty"`
}

type RoomCreated struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId"`
	GameID uuid.UUID   `json:"gameId"`
	Symbol board.Mark  `json:"symbol"`
	Board  board.Board `json:"board"`
}

type NewRoomAvailable struct {
	Type    string    `json:"type"`
	RoomID  string    `json:"roomId"`
	GameID  uuid.UUID `json:"gameId"`
	Player1 string    `json:"player1"`
}

type RoomNoLongerAvailable struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// SeatView describes one side of a match.
type SeatView struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Symbol   board.Mark `json:"symbol"`
}

type GameStarted struct {
	Type        string      `json:"type"`
	RoomID      string      `json:"roomId"`
	GameID      uuid.UUID   `json:"gameId"`
	Player1     SeatView    `json:"player1"`
	Player2     SeatView    `json:"player2"`
	CurrentTurn uuid.UUID   `json:"currentTurn"`
	Board       board.Board `json:"board"`
}

type MoveMade struct {
	Type        string      `json:"type"`
	Position    int         `json:"position"`
	Symbol      board.Mark  `json:"symbol"`
	Board       board.Board `json:"board"`
	CurrentTurn uuid.UUID   `json:"currentTurn"`
	NextPlayer  string      `json:"nextPlayer"`
}

// GameFinished reports the terminal result. Winner is the winning symbol, empty on a draw.
type GameFinished struct {
	Type        string      `json:"type"`
	Board       board.Board `json:"board"`
	Winner      board.Mark  `json:"winner"`
	WinnerID    *uuid.UUID  `json:"winnerId"`
	IsDraw      bool        `json:"isDraw"`
	WinningLine *board.Line `json:"winningLine"`
}

type OpenRoom struct {
	RoomID    string    `json:"roomId"`
	GameID    uuid.UUID `json:"gameId"`
	Player1   string    `json:"player1"`
	CreatedAt time.Time `json:"createdAt"`
}

type AvailableRooms struct {
	Type  string     `json:"type"`
	Rooms []OpenRoom `json:"rooms"`
}

type PlayerStats struct {
	Type       string    `json:"type"`
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	TotalGames int       `json:"totalGames"`
	WinRate    int       `json:"winRate"`
}

type PlayerLeft struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Winner  string `json:"winner,omitempty"`
}

type PlayerDisconnected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

// GameAbandoned tells the players of an active room that its game was abandoned without a result.
type GameAbandoned struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error event.
func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}

func (UserRegistered) EventType() string        { return TypeUserRegistered }
func (RoomCreated) EventType() string           { return TypeRoomCreated }
func (NewRoomAvailable) EventType() string      { return TypeNewRoomAvailable }
func (RoomNoLongerAvailable) EventType() string { return TypeRoomNoLongerAvailable }
func (GameStarted) EventType() string           { return TypeGameStarted }
func (MoveMade) EventType() string              { return TypeMoveMade }
func (GameFinished) EventType() string          { return TypeGameFinished }
func (AvailableRooms) EventType() string        { return TypeAvailableRooms }
func (PlayerStats) EventType() string           { return TypePlayerStats }
func (PlayerLeft) EventType() string            { return TypePlayerLeft }
func (PlayerDisconnected) EventType() string    { return TypePlayerDisconnected }
func (GameAbandoned) EventType() string         { return TypeGameAbandoned }
func (Error) EventType() string                 { return TypeError }
