// internal/board/board.go
package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Size is the number of cells on a board.
const Size = 9

// Mark is the content of a single cell.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// Opponent returns the other player's mark. Empty has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Valid reports whether m is one of the three known cell values.
func (m Mark) Valid() bool {
	return m == Empty || m == X || m == O
}

// ErrIllegalMove is returned by Place when the position is out of range or occupied.
var ErrIllegalMove = errors.New("illegal move")

// Board is a 3x3 grid laid out row by row: index 0 is the top-left cell, 8 the bottom-right.
type Board [Size]Mark

// New returns an empty board.
func New() Board {
	return Board{}
}

// IsFull reports whether no cell is empty.
func (b Board) IsFull() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Place returns a copy of b with mark written at position. b itself is never modified.
func (b Board) Place(position int, mark Mark) (Board, error) {
	if mark != X && mark != O {
		return b, fmt.Errorf("cannot place mark %q", mark)
	}
	if !IsLegalMove(b, position) {
		return b, fmt.Errorf("%w: position %d", ErrIllegalMove, position)
	}
	next := b
	next[position] = mark
	return next, nil
}

// UnmarshalJSON accepts exactly nine cells, each "", "X" or "O".
func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []Mark
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	if len(cells) != Size {
		return fmt.Errorf("board must have %d cells, got %d", Size, len(cells))
	}
	for i, c := range cells {
		if !c.Valid() {
			return fmt.Errorf("cell %d has invalid mark %q", i, c)
		}
		b[i] = c
	}
	return nil
}

// IsLegalMove reports whether position is on the board and the cell there is empty.
func IsLegalMove(b Board, position int) bool {
	if position < 0 || position >= Size {
		return false
	}
	return b[position] == Empty
}

// AvailableMoves lists the empty cells in ascending order.
func AvailableMoves(b Board) []int {
	moves := make([]int, 0, Size)
	for i, c := range b {
		if c == Empty {
			moves = append(moves, i)
		}
	}
	return moves
}
