package board

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse builds a board from a 9-char string where '.' is empty.
func parse(t *testing.T, s string) Board {
	t.Helper()
	require.Len(t, s, Size)
	var b Board
	for i, r := range s {
		switch r {
		case 'X':
			b[i] = X
		case 'O':
			b[i] = O
		case '.':
			b[i] = Empty
		default:
			t.Fatalf("bad cell %q", r)
		}
	}
	return b
}

func TestEvaluateEmptyBoard(t *testing.T) {
	res := Evaluate(New())
	assert.Equal(t, Ongoing, res.Outcome)
	assert.Nil(t, res.Line)
	assert.False(t, res.Terminal())
}

func TestEvaluateWinningLines(t *testing.T) {
	cases := []struct {
		name  string
		board string
		want  [3]int
		kind  LineKind
		mark  Mark
	}{
		{"top row", "XXXOO....", [3]int{0, 1, 2}, Row, X},
		{"middle row", "X.XOOOX..", [3]int{3, 4, 5}, Row, O},
		{"bottom row", "OO.X.XXXX", [3]int{6, 7, 8}, Row, X},
		{"left column", "OX.OX.O..", [3]int{0, 3, 6}, Column, O},
		{"middle column", "OX..XO.X.", [3]int{1, 4, 7}, Column, X},
		{"right column", "XXOX.O..O", [3]int{2, 5, 8}, Column, O},
		{"diagonal", "XO.OX...X", [3]int{0, 4, 8}, Diagonal, X},
		{"anti diagonal", "XXO.O.OX.", [3]int{2, 4, 6}, Diagonal, O},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(parse(t, tc.board))
			require.Equal(t, Win, res.Outcome)
			require.NotNil(t, res.Line)
			assert.Equal(t, tc.want, res.Line.Positions)
			assert.Equal(t, tc.kind, res.Line.Kind)
			assert.Equal(t, tc.mark, res.Symbol)
			assert.Equal(t, tc.mark, res.Line.Symbol)
		})
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	// Both the top row and the left column are complete; rows come first.
	b := parse(t, "XXXXOOXOO")
	res := Evaluate(b)
	require.Equal(t, Win, res.Outcome)
	assert.Equal(t, [3]int{0, 1, 2}, res.Line.Positions)

	// Left column and main diagonal; columns come before diagonals.
	b = parse(t, "XOOXX.XOX")
	res = Evaluate(b)
	require.Equal(t, Win, res.Outcome)
	assert.Equal(t, [3]int{0, 3, 6}, res.Line.Positions)
}

func TestEvaluateWinningCellsAreEqualAndSet(t *testing.T) {
	boards := []string{"XXXOO....", "OX.OX.O..", "XO.OX...X", "XXXXOOXOO", "OOOXX.X.X"}
	for _, s := range boards {
		b := parse(t, s)
		res := Evaluate(b)
		require.Equal(t, Win, res.Outcome, s)
		p := res.Line.Positions
		assert.NotEqual(t, Empty, b[p[0]])
		assert.Equal(t, b[p[0]], b[p[1]])
		assert.Equal(t, b[p[1]], b[p[2]])
	}
}

func TestEvaluateDraw(t *testing.T) {
	b := parse(t, "XOXXOOOXX")
	res := Evaluate(b)
	assert.Equal(t, Draw, res.Outcome)
	assert.Nil(t, res.Line)
	assert.Equal(t, Empty, res.Symbol)
	assert.True(t, res.Terminal())
}

func TestEvaluateFullBoardWithWinnerIsNotDraw(t *testing.T) {
	b := parse(t, "XXXOOXOXO")
	assert.Equal(t, Win, Evaluate(b).Outcome)
}

func TestEvaluateOngoingWhenCellsRemain(t *testing.T) {
	b := parse(t, "XOXXOOOX.")
	assert.Equal(t, Ongoing, Evaluate(b).Outcome)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	for _, s := range []string{".........", "XXXOO....", "XOXXOOOXX", "X.O.X.O.."} {
		b := parse(t, s)
		first := Evaluate(b)
		second := Evaluate(b)
		assert.Equal(t, first, second, s)
	}
}

// TestDrawIffFullWithoutWinner walks every board reachable through legal alternating play.
func TestDrawIffFullWithoutWinner(t *testing.T) {
	seen := map[Board]bool{}
	var walk func(b Board, next Mark)
	walk = func(b Board, next Mark) {
		if seen[b] {
			return
		}
		seen[b] = true
		res := Evaluate(b)
		hasWinner := res.Outcome == Win
		assert.Equal(t, b.IsFull() && !hasWinner, res.Outcome == Draw)
		if res.Terminal() {
			return
		}
		for _, pos := range AvailableMoves(b) {
			nb, err := b.Place(pos, next)
			require.NoError(t, err)
			walk(nb, next.Opponent())
		}
	}
	walk(New(), X)
	assert.Equal(t, 5478, len(seen))
}

func TestIsLegalMove(t *testing.T) {
	b := parse(t, "X...O....")
	assert.False(t, IsLegalMove(b, 0))
	assert.False(t, IsLegalMove(b, 4))
	assert.True(t, IsLegalMove(b, 1))
	assert.True(t, IsLegalMove(b, 8))
	assert.False(t, IsLegalMove(b, -1))
	assert.False(t, IsLegalMove(b, 9))
}

func TestPlaceDoesNotMutate(t *testing.T) {
	b := New()
	nb, err := b.Place(4, X)
	require.NoError(t, err)
	assert.Equal(t, X, nb[4])
	assert.Equal(t, Empty, b[4])

	_, err = nb.Place(4, O)
	assert.ErrorIs(t, err, ErrIllegalMove)

	_, err = nb.Place(3, Empty)
	assert.Error(t, err)
}

func TestAvailableMoves(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, AvailableMoves(New()))
	assert.Equal(t, []int{8}, AvailableMoves(parse(t, "XOXXOOOX.")))
	assert.Empty(t, AvailableMoves(parse(t, "XOXXOOOXX")))
}

func TestClassifyLine(t *testing.T) {
	assert.Equal(t, Row, ClassifyLine([3]int{3, 4, 5}))
	assert.Equal(t, Column, ClassifyLine([3]int{2, 5, 8}))
	assert.Equal(t, Diagonal, ClassifyLine([3]int{2, 4, 6}))
	assert.Equal(t, Diagonal, ClassifyLine([3]int{0, 4, 8}))
}

func TestOpponent(t *testing.T) {
	assert.Equal(t, O, X.Opponent())
	assert.Equal(t, X, O.Opponent())
	assert.Equal(t, Empty, Empty.Opponent())
}

func TestBoardJSON(t *testing.T) {
	b := parse(t, "X...O...X")
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `["X","","","","O","","","","X"]`, string(data))

	var short Board
	assert.Error(t, json.Unmarshal([]byte(`["X",""]`), &short))

	var bad Board
	assert.Error(t, json.Unmarshal([]byte(`["Z","","","","","","","",""]`), &bad))
}
