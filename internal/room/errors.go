package room

import (
	"errors"
	"fmt"
)

// Precondition failures. The room is left unchanged and only the requester is told.
var (
	ErrNotRegistered   = errors.New("register a username first")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotJoinable = errors.New("room is not available")
	ErrSelfJoin        = errors.New("you cannot join your own room")
	ErrAlreadyInRoom   = errors.New("you are already in a room")
	ErrNotInRoom       = errors.New("you are not in this room")
	ErrNotActive       = errors.New("game is not in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrIllegalMove     = errors.New("invalid move")
)

// ErrPersistence wraps every failure of the persistence gateway. The in-memory room was not changed.
var ErrPersistence = errors.New("persistence failure")

var preconditions = []error{
	ErrNotRegistered, ErrRoomNotFound, ErrRoomNotJoinable, ErrSelfJoin, ErrAlreadyInRoom,
	ErrNotInRoom, ErrNotActive, ErrNotYourTurn, ErrIllegalMove,
}

// IsPrecondition reports whether err is one of the precondition sentinels.
func IsPrecondition(err error) bool {
	for _, p := range preconditions {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
